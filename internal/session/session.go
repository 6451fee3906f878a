// Package session is the I/O collaborator behind the classification core:
// it fetches pages and API payloads, probes for deletion, and resolves
// redirect chains. All network fuzziness lives here — rate limits, retries,
// circuit breaking, caching — so the core above it never retries and treats
// any error as final.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher is the interface the typed URL model consumes for its lazy
// properties. Implementations must be safe for concurrent use.
type Fetcher interface {
	// FetchHTML fetches a page and parses it into a document. A response
	// with status >= 400 returns a *StatusError.
	FetchHTML(ctx context.Context, url string) (*goquery.Document, error)
	// FetchJSON fetches a URL and unmarshals the JSON body into out.
	FetchJSON(ctx context.Context, url string, out any) error
	// Head returns the status code of a HEAD probe. Non-2xx codes are
	// reported through the return value, not an error.
	Head(ctx context.Context, url string) (int, error)
	// ResolveRedirect follows the redirect chain and returns the final URL.
	ResolveRedirect(ctx context.Context, url string) (string, error)
	// Download fetches raw bytes.
	Download(ctx context.Context, url string) ([]byte, error)
}

// StatusError reports an HTTP error status on an otherwise successful
// exchange.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.Code, e.URL)
}

// IsNotFound reports whether an error is a 404/410 status error, the usual
// "resource deleted" signal.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && (se.Code == 404 || se.Code == 410)
}

// Observer receives fetch outcomes for metrics.
type Observer interface {
	ObserveFetch(domain string, statusCode int, fromCache bool)
	ObserveFetchDuration(domain string, d time.Duration)
	UpdateCircuitBreakerState(domain string, state int)
}
