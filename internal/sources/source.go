// Package sources is the URL classification core: it maps raw URLs harvested
// from the web onto strongly typed per-platform values, renders each value
// back into one canonical string, and exposes what operations a given URL
// supports through small capability interfaces.
package sources

import (
	"context"
	"sync"
	"time"

	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/session"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

// Source is the root of the typed URL model. Equality between sources is
// defined by String(): two differently spelled URLs addressing the same
// resource under the same type compare equal by their canonical form.
type Source interface {
	// Site names the platform ("pixiv", "twitter", ...), or "unknown".
	Site() string
	// Tokens returns the originating tokenized URL. Nil for sources built
	// directly from structured fields instead of a parsed string.
	Tokens() *urlkit.Tokens
	// String renders the canonical URL. Computed once, cached for the
	// lifetime of the value; stable for a given set of fields.
	String() string
}

// Gallery is a URL that owns an enumerable set of posts, typically an
// artist's work listing.
type Gallery interface {
	Source
	Posts(ctx context.Context) ([]Source, error)
}

// ArtistInfo is a URL that identifies an artist and can yield that artist's
// names and cross-platform profile links. A deleted profile yields empty
// collections, never an error.
type ArtistInfo interface {
	Source
	PrimaryNames(ctx context.Context) ([]string, error)
	SecondaryNames(ctx context.Context) ([]string, error)
	Related(ctx context.Context) ([]Source, error)
	IsDeleted(ctx context.Context) (bool, error)
}

// Post is a URL addressing a single submission.
type Post interface {
	Source
	Gallery(ctx context.Context) (Gallery, error)
	Assets(ctx context.Context) ([]Source, error)
	CreatedAt(ctx context.Context) (time.Time, error)
	Score(ctx context.Context) (int, error)
}

// File is materialized asset content. An asset may expand into several
// files when the URL points at an archive.
type File struct {
	Name string
	Data []byte
}

// Asset is a URL addressing downloadable content.
type Asset interface {
	Source
	Files(ctx context.Context) ([]File, error)
}

// Redirect is a URL whose meaning is whatever it redirects to.
type Redirect interface {
	Source
	Resolved(ctx context.Context) (Source, error)
}

// Env carries the external collaborators capability methods need. A nil or
// zero Env still allows parsing and normalization; only the lazy fetching
// properties require a Fetcher.
type Env struct {
	Fetcher session.Fetcher
	Logger  logger.Logger
	// Resolve types raw URL strings scraped off fetched pages. Assigned
	// during wiring once the resolver exists (the resolver itself needs the
	// registry, which needs this Env, so the field is set late).
	Resolve func(raw string) (Source, error)
}

func (e *Env) fetcher() (session.Fetcher, error) {
	if e == nil || e.Fetcher == nil {
		return nil, errNoFetcher
	}
	return e.Fetcher, nil
}

var errNoFetcher = noFetcherError{}

type noFetcherError struct{}

func (noFetcherError) Error() string { return "sources: no fetcher configured for lazy property" }

// base carries the state shared by every concrete variant. Concrete types
// embed it and implement String via norm.get so the canonical form is
// computed at most once.
type base struct {
	site string
	toks *urlkit.Tokens
	env  *Env
	norm normCache
}

func (b *base) Site() string           { return b.site }
func (b *base) Tokens() *urlkit.Tokens { return b.toks }

type normCache struct {
	once sync.Once
	s    string
}

func (c *normCache) get(f func() string) string {
	c.once.Do(func() { c.s = f() })
	return c.s
}

// memo caches one lazily computed property per instance, including its
// error. Repeated access within the value's lifetime never refetches.
type memo[T any] struct {
	once sync.Once
	v    T
	err  error
}

func (m *memo[T]) do(f func() (T, error)) (T, error) {
	m.once.Do(func() { m.v, m.err = f() })
	return m.v, m.err
}

// profile is the fetched identity payload behind an ArtistInfo source.
// Deleted profiles are represented as an empty profile with Deleted set,
// so name accessors return empty collections instead of failing.
type profile struct {
	Primary   []string
	Secondary []string
	Related   []Source
	Deleted   bool
}

// headDeleted is the default deletion probe: a HEAD returning 404 (or 410)
// means the resource is gone. Variants with platform-specific tombstone
// pages override this.
func headDeleted(ctx context.Context, env *Env, url string) (bool, error) {
	f, err := env.fetcher()
	if err != nil {
		return false, err
	}
	status, err := f.Head(ctx, url)
	if err != nil {
		return false, err
	}
	return status == 404 || status == 410, nil
}

// Equal reports whether two sources address the same resource, comparing by
// canonical form.
func Equal(a, b Source) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
