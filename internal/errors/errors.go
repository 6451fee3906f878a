// Package errors defines the error taxonomy shared across the URL
// classification core. The core never retries and never swallows unexpected
// conditions; these types exist so callers can tell expected outcomes
// (unknown domain, deliberately unsupported shape) apart from defects
// (unhandled shape on a claimed domain, capability violations).
package errors

import (
	"errors"
	"fmt"
)

// ErrUnsupportedShape is returned by a parser for URL shapes it recognizes
// but deliberately does not model (dead legacy paths, raw binary endpoints).
// Callers may skip such URLs; it is not a defect.
var ErrUnsupportedShape = errors.New("url shape is recognized but unsupported")

// MalformedURLError means the input is not a well-formed absolute
// http(s) URL. It is surfaced to the caller of Parse and never retried.
type MalformedURLError struct {
	Raw    string
	Reason string
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed url %q: %s", e.Raw, e.Reason)
}

// UnknownShapeError means a parser claims the URL's domain but matched none
// of its patterns. This is always a defect in the parser's route table, never
// a skippable condition: the supported-domain list is lying about coverage.
type UnknownShapeError struct {
	Site string
	Raw  string
}

func (e *UnknownShapeError) Error() string {
	return fmt.Sprintf("parser for %s matched no pattern for %q", e.Site, e.Raw)
}

// DuplicateDomainError means two parsers claim the same registrable domain.
// The registry refuses to start with an ambiguous routing table.
type DuplicateDomainError struct {
	Domain   string
	Existing string
	Incoming string
}

func (e *DuplicateDomainError) Error() string {
	return fmt.Sprintf("domain %s already registered to %s, refused for %s",
		e.Domain, e.Existing, e.Incoming)
}

// CapabilityError means a URL of an unexpected capability appeared where an
// artist identity node was required. The walker refuses to guess; the
// offending URL and the URL that linked to it are both recorded so the broken
// edge is traceable.
type CapabilityError struct {
	URL          string
	DiscoveredBy string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("unexpected capability for %q (discovered via %q)", e.URL, e.DiscoveredBy)
}

// TagExhaustedError means every candidate artist tag name was invalid or
// already taken. Silently inventing a name would corrupt the shared tag
// namespace, so this is surfaced loudly.
type TagExhaustedError struct {
	Primary   []string
	Secondary []string
}

func (e *TagExhaustedError) Error() string {
	return fmt.Sprintf("no usable tag name among %d primary and %d secondary candidates",
		len(e.Primary), len(e.Secondary))
}

// DuplicateTagError means more than one existing tag claims the same URL, an
// unresolved-duplicate condition that requires human triage.
type DuplicateTagError struct {
	URL  string
	Tags []string
}

func (e *DuplicateTagError) Error() string {
	return fmt.Sprintf("url %q is claimed by %d tags %v, expected at most one", e.URL, len(e.Tags), e.Tags)
}

// Is, As and Unwrap re-exports so callers only import one errors package.
func Is(err, target error) bool     { return errors.Is(err, target) }
func As(err error, target any) bool { return errors.As(err, target) }
func New(text string) error         { return errors.New(text) }
