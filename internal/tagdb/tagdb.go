// Package tagdb persists artist tags and the source URLs that belong to
// them. The SQLite store is the durable side of artist identity
// resolution: given a URL it answers which tag already claims it, and it
// records new tags once a usable name has been chosen.
package tagdb

import "time"

// Logger interface for store logging
type Logger interface {
	Info(format string, v ...interface{})
	Debug(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Tag categories. Only artist tags participate in identity resolution;
// other categories exist so a URL claimed by a non-artist tag is detected
// instead of silently reused.
const (
	CategoryArtist    = "artist"
	CategoryCopyright = "copyright"
	CategoryCharacter = "character"
	CategoryGeneral   = "general"
)

// TagRecord is one stored tag together with its claimed URLs.
type TagRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	OtherNames []string  `json:"other_names,omitempty"`
	URLs       []string  `json:"urls,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store is the persistence surface identity resolution runs against.
type Store interface {
	// FindTagsByURL returns every tag claiming the exact URL, any category.
	FindTagsByURL(url string) ([]TagRecord, error)
	// FindTagByName returns the tag with the given name, nil when absent.
	FindTagByName(name string) (*TagRecord, error)
	// CreateArtistTag stores a new artist tag. The record's ID is assigned
	// when empty.
	CreateArtistTag(rec *TagRecord) error
	// UpdateArtistURLs unions the given URLs into the tag's claimed set.
	UpdateArtistURLs(tagID string, urls []string) error
	Close() error
}
