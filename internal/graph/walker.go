// Package graph walks the web of profile links between artist identities.
// Starting from one artist URL it follows every Related edge, chases
// redirects, and returns the full set of URLs that belong to the same
// artist, each visited exactly once.
package graph

import (
	"context"
	"time"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/session"
	"github.com/ayane-dev/musubi/internal/sources"
)

// Observer receives walk telemetry. The prometheus implementation lives in
// internal/metrics; tests pass nil.
type Observer interface {
	ObserveWalk(nodes int, d time.Duration)
}

type nodeState int

const (
	stateVisiting nodeState = iota + 1
	stateSettled
)

// Walker expands an artist identity into the transitive closure of its
// profile links.
//
// The traversal is deterministic: edges are followed in the order the
// platforms report them and the result preserves first-discovery order. A
// node is keyed by its canonical URL, so the same profile reached through
// two differently spelled links is visited once.
type Walker struct {
	log logger.Logger
	obs Observer
}

func NewWalker(log logger.Logger, obs Observer) *Walker {
	return &Walker{log: log, obs: obs}
}

type workItem struct {
	src sources.Source
	// discoveredBy is the canonical URL of the node whose Related edge
	// produced this item, empty for the seed.
	discoveredBy string
}

// Walk returns every source reachable from seed over Related edges,
// including the seed itself, in first-discovery order.
//
// Redirect nodes never appear in the result; each is replaced by its
// target, and a redirect pointing at a deleted resource drops the edge
// instead of failing the walk. Gallery-only and unrecognized-domain nodes
// are kept as leaves. Any other capability reached over a Related edge is a
// broken link in the source platform's profile data and fails the walk
// with a CapabilityError naming both ends of the edge.
func (w *Walker) Walk(ctx context.Context, seed sources.Source) ([]sources.Source, error) {
	start := time.Now()

	states := map[string]nodeState{}
	var out []sources.Source
	queue := []workItem{{src: seed}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		src, skip, err := w.chaseRedirects(ctx, item)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		key := src.String()
		if states[key] != 0 {
			continue
		}
		states[key] = stateVisiting

		next, err := w.expand(ctx, src, item.discoveredBy)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
		for _, edge := range next {
			queue = append(queue, workItem{src: edge, discoveredBy: key})
		}
		states[key] = stateSettled
	}

	if w.obs != nil {
		w.obs.ObserveWalk(len(out), time.Since(start))
	}
	return out, nil
}

const maxRedirectDepth = 10

// chaseRedirects substitutes a redirect chain with its final target. A
// chain ending in a deleted resource reports skip instead of an error: the
// link is stale, not broken.
func (w *Walker) chaseRedirects(ctx context.Context, item workItem) (sources.Source, bool, error) {
	src := item.src
	for depth := 0; ; depth++ {
		red, ok := src.(sources.Redirect)
		if !ok {
			return src, false, nil
		}
		if depth >= maxRedirectDepth {
			return nil, false, errors.New("redirect chain exceeded " + src.String())
		}
		resolved, err := red.Resolved(ctx)
		if err != nil {
			if session.IsNotFound(err) {
				w.log.Debug("Dropping edge to %s: redirect target is gone", src.String())
				return nil, true, nil
			}
			return nil, false, err
		}
		w.log.Debug("Redirect %s resolved to %s", src.String(), resolved.String())
		src = resolved
	}
}

// expand classifies one settled node and returns its outgoing edges.
func (w *Walker) expand(ctx context.Context, src sources.Source, discoveredBy string) ([]sources.Source, error) {
	switch t := src.(type) {
	case sources.ArtistInfo:
		deleted, err := t.IsDeleted(ctx)
		if err != nil {
			return nil, err
		}
		if deleted {
			w.log.Debug("Artist profile %s is deleted, keeping as leaf", src.String())
			return nil, nil
		}
		return t.Related(ctx)
	case *sources.UnknownSource:
		return nil, nil
	case sources.Gallery:
		// A gallery that carries no identity has nothing to expand but is
		// still part of the artist's footprint.
		return nil, nil
	default:
		return nil, &errors.CapabilityError{URL: src.String(), DiscoveredBy: discoveredBy}
	}
}
