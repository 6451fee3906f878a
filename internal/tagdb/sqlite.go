package tagdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	conn   *sql.DB
	logger Logger
}

// Open creates the store connection and runs migrations.
func Open(path string, log Logger) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tag database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	// Enable WAL mode for better concurrent write performance
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{conn: conn, logger: log}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s.logger.Info("Tag database initialized at %s", path)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		category TEXT NOT NULL DEFAULT 'artist',
		other_names TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tag_urls (
		tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		PRIMARY KEY (tag_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_tag_urls_url ON tag_urls(url);
	CREATE INDEX IF NOT EXISTS idx_tags_name ON tags(name);
	`

	if _, err := s.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tag schema: %w", err)
	}
	return nil
}

// FindTagsByURL returns every tag claiming the exact URL.
func (s *SQLiteStore) FindTagsByURL(url string) ([]TagRecord, error) {
	query := `
		SELECT t.id, t.name, t.category, t.other_names, t.created_at, t.updated_at
		FROM tags t
		JOIN tag_urls tu ON tu.tag_id = t.id
		WHERE tu.url = ?
		ORDER BY t.created_at
	`

	rows, err := s.conn.Query(query, url)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags by url: %w", err)
	}
	defer rows.Close()

	var tags []TagRecord
	for rows.Next() {
		rec, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}

	for i := range tags {
		urls, err := s.tagURLs(tags[i].ID)
		if err != nil {
			return nil, err
		}
		tags[i].URLs = urls
	}
	return tags, nil
}

// FindTagByName returns the tag with the given name, nil when absent.
func (s *SQLiteStore) FindTagByName(name string) (*TagRecord, error) {
	query := `
		SELECT id, name, category, other_names, created_at, updated_at
		FROM tags
		WHERE name = ?
	`

	rows, err := s.conn.Query(query, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag by name: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := scanTag(rows)
	if err != nil {
		return nil, err
	}
	urls, err := s.tagURLs(rec.ID)
	if err != nil {
		return nil, err
	}
	rec.URLs = urls
	return rec, nil
}

// CreateArtistTag stores a new artist tag with its initial URL set.
func (s *SQLiteStore) CreateArtistTag(rec *TagRecord) (retErr error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Category == "" {
		rec.Category = CategoryArtist
	}

	otherNames, err := json.Marshal(rec.OtherNames)
	if err != nil {
		return fmt.Errorf("failed to encode other names: %w", err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to start tag insert: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	if _, err := tx.Exec(
		`INSERT INTO tags (id, name, category, other_names, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Category, string(otherNames), now, now,
	); err != nil {
		retErr = fmt.Errorf("failed to insert tag %s: %w", rec.Name, err)
		return retErr
	}

	for _, url := range rec.URLs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO tag_urls (tag_id, url) VALUES (?, ?)`,
			rec.ID, url,
		); err != nil {
			retErr = fmt.Errorf("failed to insert tag url %s: %w", url, err)
			return retErr
		}
	}

	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("failed to commit tag insert: %w", err)
		return retErr
	}

	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.logger.Info("Created artist tag %s with %d urls", rec.Name, len(rec.URLs))
	return nil
}

// UpdateArtistURLs unions the given URLs into the tag's claimed set.
func (s *SQLiteStore) UpdateArtistURLs(tagID string, urls []string) (retErr error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to start url update: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, url := range urls {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO tag_urls (tag_id, url) VALUES (?, ?)`,
			tagID, url,
		); err != nil {
			retErr = fmt.Errorf("failed to add url %s: %w", url, err)
			return retErr
		}
	}

	if _, err := tx.Exec(
		`UPDATE tags SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, tagID,
	); err != nil {
		retErr = fmt.Errorf("failed to touch tag %s: %w", tagID, err)
		return retErr
	}

	if err := tx.Commit(); err != nil {
		retErr = fmt.Errorf("failed to commit url update: %w", err)
		return retErr
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *SQLiteStore) tagURLs(tagID string) ([]string, error) {
	rows, err := s.conn.Query(`SELECT url FROM tag_urls WHERE tag_id = ? ORDER BY url`, tagID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("failed to scan tag url: %w", err)
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}

func scanTag(rows *sql.Rows) (*TagRecord, error) {
	var rec TagRecord
	var otherNames sql.NullString
	if err := rows.Scan(
		&rec.ID,
		&rec.Name,
		&rec.Category,
		&otherNames,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan tag row: %w", err)
	}
	if otherNames.Valid && otherNames.String != "" {
		if err := json.Unmarshal([]byte(otherNames.String), &rec.OtherNames); err != nil {
			return nil, fmt.Errorf("failed to decode other names for %s: %w", rec.Name, err)
		}
	}
	return &rec, nil
}
