// Package urlkit splits raw URL strings into the pieces the per-site parsers
// route on: scheme, hostname, registrable domain, subdomain, path segments
// and query parameters. Tokenization is pure and memoized per input string.
package urlkit

import (
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/ayane-dev/musubi/internal/errors"
)

// Tokens is the immutable decomposition of one absolute http(s) URL.
type Tokens struct {
	Raw       string
	Scheme    string
	Host      string            // full hostname, port stripped, lowercased
	Domain    string            // registrable domain (eTLD+1), never empty
	Subdomain string            // host minus domain, "" when absent
	Segments  []string          // path segments, empties collapsed
	Query     map[string]string // last occurrence wins on duplicate keys
}

// Param returns a query parameter value, "" when absent.
func (t *Tokens) Param(key string) string {
	return t.Query[key]
}

// Path reassembles the segment list into a "/"-joined path without a
// leading slash. Useful for suffix checks against filename heuristics.
func (t *Tokens) Path() string {
	return strings.Join(t.Segments, "/")
}

var cache sync.Map // raw string → cached result

type cached struct {
	toks *Tokens
	err  error
}

// Tokenize splits a raw URL. Results are memoized for the process lifetime;
// tokenizing the same string twice returns the same *Tokens.
func Tokenize(raw string) (*Tokens, error) {
	if v, ok := cache.Load(raw); ok {
		c := v.(cached)
		return c.toks, c.err
	}
	toks, err := tokenize(raw)
	cache.Store(raw, cached{toks: toks, err: err})
	return toks, err
}

func tokenize(raw string) (*Tokens, error) {
	input := raw
	// Escaped inputs show up when URLs are harvested out of JSON or HTML
	// attributes; normalize them before splitting.
	if strings.Contains(input, "%") {
		if unescaped, err := url.PathUnescape(input); err == nil {
			input = unescaped
		}
	}
	input = strings.ReplaceAll(input, `:`, ":")
	input = strings.ReplaceAll(input, `/`, "/")

	u, err := url.Parse(strings.TrimSpace(input))
	if err != nil {
		return nil, &errors.MalformedURLError{Raw: raw, Reason: err.Error()}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, &errors.MalformedURLError{Raw: raw, Reason: "scheme must be http or https"}
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, &errors.MalformedURLError{Raw: raw, Reason: "missing hostname"}
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return nil, &errors.MalformedURLError{Raw: raw, Reason: "no registrable domain: " + err.Error()}
	}

	subdomain := ""
	if host != domain {
		subdomain = strings.TrimSuffix(host, "."+domain)
	}

	var segments []string
	for _, seg := range strings.Split(u.Path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}

	query := make(map[string]string)
	// url.Values keeps all occurrences; the last one wins here.
	for key, vals := range u.Query() {
		if len(vals) > 0 {
			query[key] = vals[len(vals)-1]
		}
	}

	return &Tokens{
		Raw:       raw,
		Scheme:    scheme,
		Host:      host,
		Domain:    domain,
		Subdomain: subdomain,
		Segments:  segments,
		Query:     query,
	}, nil
}
