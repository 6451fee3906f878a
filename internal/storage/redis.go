// Package storage provides the Redis-backed snapshot cache the fetch layer
// consults before going to the network. Bodies are deduplicated by content
// hash; when a page changes between fetches a short diff summary is kept so
// layout drift on a platform can be spotted from the cache alone.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ayane-dev/musubi/internal/logger"
)

// Snapshot is one cached fetch result.
type Snapshot struct {
	URL           string    `json:"url"`
	StatusCode    int       `json:"status_code"`
	Body          string    `json:"body"`
	ContentHash   string    `json:"content_hash"`
	FetchedAt     time.Time `json:"fetched_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	PreviousHash  string    `json:"previous_hash,omitempty"`
	HasChanges    bool      `json:"has_changes"`
	ChangeSummary string    `json:"change_summary,omitempty"`
}

// Cache wraps a Redis client with snapshot semantics.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewCache connects to Redis and verifies the connection.
func NewCache(addr, password string, db int, ttl time.Duration, log logger.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	log.Info("Snapshot cache connected to redis at %s", addr)
	return &Cache{client: client, ttl: ttl, logger: log}, nil
}

func snapshotKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return "musubi:snapshot:" + hex.EncodeToString(sum[:])
}

// Get returns the cached snapshot for a URL, nil when absent.
func (c *Cache) Get(ctx context.Context, url string) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey(url)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot for %s: %w", url, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot for %s: %w", url, err)
	}
	return &snap, nil
}

// Save stores a fetch result. When the body is unchanged since the previous
// snapshot only last_checked_at moves; otherwise the previous hash and a
// diff summary are recorded alongside the new body.
func (c *Cache) Save(ctx context.Context, url string, statusCode int, body string) (*Snapshot, error) {
	now := time.Now()
	hash := computeContentHash(body)

	snap := &Snapshot{
		URL:           url,
		StatusCode:    statusCode,
		Body:          body,
		ContentHash:   hash,
		FetchedAt:     now,
		LastCheckedAt: now,
	}

	prev, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		if prev.ContentHash == hash {
			prev.LastCheckedAt = now
			if err := c.put(ctx, url, prev); err != nil {
				return nil, err
			}
			return prev, nil
		}
		snap.PreviousHash = prev.ContentHash
		snap.HasChanges = true
		snap.ChangeSummary = summarizeChanges(prev.Body, body)
	}

	if err := c.put(ctx, url, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (c *Cache) put(ctx context.Context, url string, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", url, err)
	}
	if err := c.client.Set(ctx, snapshotKey(url), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store snapshot for %s: %w", url, err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func computeContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// summarizeChanges reduces a body diff to insertion/deletion counts. The
// full diff is too large to keep per snapshot.
func summarizeChanges(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	inserted, deleted := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	return fmt.Sprintf("+%d/-%d bytes", inserted, deleted)
}
