package sources

import (
	"fmt"
	"sync"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

// Observer receives parse outcomes for metrics. Implemented by the metrics
// package; kept as a local interface so the core has no metrics dependency.
type Observer interface {
	ObserveParse(site, outcome string)
}

// Resolver is the single entry point for turning raw strings into typed
// sources. Identical inputs are memoized for the process lifetime: parsing
// is a pure function of the string, and at aggregation scale the same URL
// is seen many times.
type Resolver struct {
	registry *Registry
	env      *Env
	observer Observer

	mu    sync.Mutex
	cache map[string]parseResult
}

type parseResult struct {
	src Source
	err error
}

// NewResolver wires a resolver. env may be nil for pure parse/normalize use.
func NewResolver(registry *Registry, env *Env) *Resolver {
	return &Resolver{
		registry: registry,
		env:      env,
		cache:    make(map[string]parseResult),
	}
}

// SetObserver attaches a metrics observer. Must be called before first use.
func (r *Resolver) SetObserver(o Observer) { r.observer = o }

// Parse classifies a raw URL string.
//
// Unknown domains are an expected, common outcome and return an
// *UnknownSource with a nil error. A malformed input returns
// MalformedURLError; a deliberately unsupported shape returns
// errors.ErrUnsupportedShape; a claimed domain whose parser matched nothing
// returns UnknownShapeError, which is always a defect to fix in the parser.
func (r *Resolver) Parse(raw string) (Source, error) {
	r.mu.Lock()
	if res, ok := r.cache[raw]; ok {
		r.mu.Unlock()
		return res.src, res.err
	}
	r.mu.Unlock()

	src, err := r.parse(raw)

	r.mu.Lock()
	r.cache[raw] = parseResult{src: src, err: err}
	r.mu.Unlock()
	return src, err
}

func (r *Resolver) parse(raw string) (Source, error) {
	toks, err := urlkit.Tokenize(raw)
	if err != nil {
		r.observe("", "malformed")
		return nil, err
	}

	parser := r.registry.Lookup(toks.Domain)
	if parser == nil {
		r.observe("unknown", "unknown_domain")
		return newUnknownSource(toks, r.env), nil
	}

	src, err := parser.Parse(toks)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupportedShape) {
			r.observe(parser.Site(), "unsupported_shape")
			return nil, fmt.Errorf("%s: %q: %w", parser.Site(), raw, errors.ErrUnsupportedShape)
		}
		r.observe(parser.Site(), "parser_error")
		return nil, fmt.Errorf("parser %s failed on %q: %w", parser.Site(), raw, err)
	}
	if src == nil {
		r.observe(parser.Site(), "unhandled_shape")
		return nil, &errors.UnknownShapeError{Site: parser.Site(), Raw: raw}
	}

	r.observe(parser.Site(), "ok")
	return src, nil
}

// Coerce accepts either a raw string or an already-typed source, returning
// typed input unchanged. Parsing is idempotent over its own output.
func (r *Resolver) Coerce(v any) (Source, error) {
	switch x := v.(type) {
	case Source:
		return x, nil
	case string:
		return r.Parse(x)
	default:
		return nil, fmt.Errorf("cannot coerce %T into a source", v)
	}
}

// Normalize is a convenience wrapper returning only the canonical string.
func (r *Resolver) Normalize(raw string) (string, error) {
	src, err := r.Parse(raw)
	if err != nil {
		return "", err
	}
	return src.String(), nil
}

func (r *Resolver) observe(site, outcome string) {
	if r.observer != nil {
		r.observer.ObserveParse(site, outcome)
	}
}
