package sources

import (
	"strings"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

// The route table is the matching DSL every per-site parser is written in.
// Routes are evaluated top to bottom, first match wins, so more specific
// shapes must appear before catch-alls. A table that matches nothing makes
// the parser return (nil, nil), which the resolver escalates to
// UnknownShapeError: silence is a defect, not a skip.
//
// Subdomain patterns: "*" matches anything including none, ":name" captures
// a non-empty subdomain, otherwise a "|"-separated alternation of literals
// where the empty alternative matches "no subdomain" ("www|" is the common
// "www or bare domain" case).
//
// Path patterns: "/"-separated segments where ":name" captures one segment
// and "*name" (final position only) captures the remaining segments joined
// by "/". The empty pattern "" matches the bare root.
//
// Query patterns require a parameter to be present; ":name" captures its
// value, any other string must match literally.

// Vars holds the values captured by a matched route.
type Vars map[string]string

// Int returns a captured variable as an integer, 0 when absent or invalid.
// Routes that need "must be numeric" use the Digits guard instead.
func (v Vars) Int(name string) int {
	n := 0
	for _, c := range v[name] {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

type route struct {
	subdomain string
	path      string
	query     map[string]string
	guard     func(v Vars, t *urlkit.Tokens) bool
	build     func(v Vars, t *urlkit.Tokens) Source
	// unsupported marks a recognized-but-deliberately-unmodeled shape.
	unsupported bool
}

type routeTable struct {
	routes []route
}

func (rt *routeTable) match(t *urlkit.Tokens) (Source, error) {
	for _, r := range rt.routes {
		vars, ok := r.matchTokens(t)
		if !ok {
			continue
		}
		if r.guard != nil && !r.guard(vars, t) {
			continue
		}
		if r.unsupported {
			return nil, errors.ErrUnsupportedShape
		}
		return r.build(vars, t), nil
	}
	return nil, nil
}

func (r *route) matchTokens(t *urlkit.Tokens) (Vars, bool) {
	vars := Vars{}

	if !matchSubdomain(r.subdomain, t.Subdomain, vars) {
		return nil, false
	}
	if !matchPath(r.path, t.Segments, vars) {
		return nil, false
	}
	for key, pat := range r.query {
		val, ok := t.Query[key]
		if !ok || val == "" {
			return nil, false
		}
		if strings.HasPrefix(pat, ":") {
			vars[pat[1:]] = val
		} else if pat != val {
			return nil, false
		}
	}
	return vars, true
}

func matchSubdomain(pattern, sub string, vars Vars) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasPrefix(pattern, ":"):
		if sub == "" {
			return false
		}
		vars[pattern[1:]] = sub
		return true
	default:
		for _, alt := range strings.Split(pattern, "|") {
			if alt == sub {
				return true
			}
		}
		return false
	}
}

func matchPath(pattern string, segments []string, vars Vars) bool {
	pattern = strings.TrimPrefix(pattern, "/")
	if pattern == "" {
		return len(segments) == 0
	}
	parts := strings.Split(pattern, "/")

	for i, part := range parts {
		if strings.HasPrefix(part, "*") {
			// Rest capture swallows everything left, including nothing.
			vars[part[1:]] = strings.Join(segments[i:], "/")
			return true
		}
		if i >= len(segments) {
			return false
		}
		if strings.HasPrefix(part, ":") {
			vars[part[1:]] = segments[i]
			continue
		}
		if part != segments[i] {
			return false
		}
	}
	return len(segments) == len(parts)
}

// Digits is a guard helper: true when the named capture is one or more
// ASCII digits. Many platforms distinguish numeric ids from usernames this
// way rather than by path shape.
func Digits(name string) func(Vars, *urlkit.Tokens) bool {
	return func(v Vars, _ *urlkit.Tokens) bool {
		return isDigits(v[name])
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
