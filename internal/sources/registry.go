package sources

import (
	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

// Parser translates a tokenized URL into a typed source. One parser owns
// one registrable domain or a small family of them.
//
// Parse outcomes:
//   - (s, nil): matched.
//   - (nil, nil): the domain is claimed but no pattern matched. The resolver
//     escalates this to UnknownShapeError; it is a route-table bug.
//   - (nil, errors.ErrUnsupportedShape): recognized, deliberately unmodeled.
type Parser interface {
	Site() string
	Domains() []string
	Parse(t *urlkit.Tokens) (Source, error)
}

// Registry maps registrable domains to their parsers. It is populated once
// at startup through an explicit parser list; duplicate domain claims are a
// construction error, so an ambiguous table is never served.
type Registry struct {
	byDomain map[string]Parser
}

// NewRegistry builds a registry from an explicit parser list.
func NewRegistry(parsers ...Parser) (*Registry, error) {
	r := &Registry{byDomain: make(map[string]Parser)}
	for _, p := range parsers {
		for _, domain := range p.Domains() {
			if existing, ok := r.byDomain[domain]; ok {
				return nil, &errors.DuplicateDomainError{
					Domain:   domain,
					Existing: existing.Site(),
					Incoming: p.Site(),
				}
			}
			r.byDomain[domain] = p
		}
	}
	return r, nil
}

// MustRegistry is NewRegistry for main-style startup paths where a duplicate
// domain claim should abort the process.
func MustRegistry(parsers ...Parser) *Registry {
	r, err := NewRegistry(parsers...)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the parser claiming a registrable domain, nil when none.
func (r *Registry) Lookup(domain string) Parser {
	return r.byDomain[domain]
}

// Domains returns every registered registrable domain.
func (r *Registry) Domains() []string {
	out := make([]string, 0, len(r.byDomain))
	for d := range r.byDomain {
		out = append(out, d)
	}
	return out
}

// DefaultParsers returns the full supported-platform list. This is the one
// place new platforms are wired in; registration is deliberate rather than
// a side effect of package loading, so the duplicate-domain check runs at a
// predictable point during startup.
func DefaultParsers(env *Env) []Parser {
	return []Parser{
		newPixivParser(env),
		newTwitterParser(env),
		newArtStationParser(env),
		newBoothParser(env),
		newDeviantArtParser(env),
		newFanboxParser(env),
		newNijieParser(env),
		newFantiaParser(env),
		newSkebParser(env),
		newTumblrParser(env),
	}
}
