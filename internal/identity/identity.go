// Package identity decides which artist tag a discovered artist belongs
// to. Given the settled node set of a related-graph walk it either finds
// the existing tag that already claims one of the URLs, or synthesizes a
// new collision-free tag name from the artist's collected names.
package identity

import (
	"context"
	"fmt"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/sources"
	"github.com/ayane-dev/musubi/internal/tagdb"
)

// Transliterator romanizes non-ASCII names. Implementations are expected
// to be language-aware; the built-in fallback is a generic unicode-to-ASCII
// mapping that loses reading information for CJK scripts.
type Transliterator interface {
	Transliterate(s string) (string, error)
}

// Resolver maps walked artist graphs onto tags in the tag database.
type Resolver struct {
	store    tagdb.Store
	translit Transliterator
	log      logger.Logger
}

func NewResolver(store tagdb.Store, translit Transliterator, log logger.Logger) *Resolver {
	if translit == nil {
		translit = genericTransliterator{}
	}
	return &Resolver{store: store, translit: translit, log: log}
}

// FindExistingTag looks each candidate URL up in the tag database and
// returns the name of the tag that claims one of them, or "" when none
// does. On a hit the tag's URL set is updated with the full candidate set
// before returning.
//
// More than one tag claiming the same URL is an unresolved-duplicate
// condition that needs human triage, and a claiming tag outside the artist
// taxonomy is a data corruption signal; both fail loudly.
func (r *Resolver) FindExistingTag(urls []string) (string, error) {
	for _, url := range urls {
		tags, err := r.store.FindTagsByURL(url)
		if err != nil {
			return "", fmt.Errorf("tag lookup for %q failed: %w", url, err)
		}
		if len(tags) == 0 {
			continue
		}
		if len(tags) > 1 {
			names := make([]string, len(tags))
			for i, t := range tags {
				names[i] = t.Name
			}
			return "", &errors.DuplicateTagError{URL: url, Tags: names}
		}

		tag := tags[0]
		if tag.Category != tagdb.CategoryArtist {
			return "", fmt.Errorf("url %q is claimed by %s tag %q, expected an artist tag",
				url, tag.Category, tag.Name)
		}
		if err := r.store.UpdateArtistURLs(tag.ID, urls); err != nil {
			return "", fmt.Errorf("failed to update urls for tag %q: %w", tag.Name, err)
		}
		r.log.Debug("URL %s matched existing tag %s", url, tag.Name)
		return tag.Name, nil
	}
	return "", nil
}

// SynthesizeTagName produces a new, valid, untaken tag name from the
// collected name candidates. Primary names are tried alone first; when all
// are taken or invalid, every name_(qualifier) combination over
// primary x (primary + secondary) is tried. Running out of combinations is
// a hard failure so an invalid name never leaks into the tag namespace.
func (r *Resolver) SynthesizeTagName(primary, secondary []string) (string, error) {
	primary = dedupe(primary)
	secondary = subtract(dedupe(secondary), primary)

	for _, name := range primary {
		candidate := r.SanitizeTagName(name)
		ok, err := r.ValidNewTagName(candidate)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}

	qualifiers := dedupe(append(append([]string{}, primary...), secondary...))
	for _, name := range primary {
		for _, qual := range qualifiers {
			if name == qual {
				continue
			}
			candidate := fmt.Sprintf("%s_(%s)", r.SanitizeTagName(name), r.SanitizeTagName(qual))
			ok, err := r.ValidNewTagName(candidate)
			if err != nil {
				return "", err
			}
			if ok {
				return candidate, nil
			}
		}
	}

	return "", &errors.TagExhaustedError{Primary: primary, Secondary: secondary}
}

// Resolve is the end-to-end operation over a walked node set: match an
// existing tag, or create a new one named from the artists' collected
// names. The second return reports whether a tag was created.
func (r *Resolver) Resolve(ctx context.Context, nodes []sources.Source) (*tagdb.TagRecord, bool, error) {
	urls := make([]string, len(nodes))
	for i, n := range nodes {
		urls[i] = n.String()
	}

	name, err := r.FindExistingTag(urls)
	if err != nil {
		return nil, false, err
	}
	if name != "" {
		rec, err := r.store.FindTagByName(name)
		if err != nil {
			return nil, false, err
		}
		return rec, false, nil
	}

	var primary, secondary []string
	for _, n := range nodes {
		info, ok := n.(sources.ArtistInfo)
		if !ok {
			continue
		}
		p, err := info.PrimaryNames(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to collect names from %s: %w", n.String(), err)
		}
		s, err := info.SecondaryNames(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to collect names from %s: %w", n.String(), err)
		}
		primary = append(primary, p...)
		secondary = append(secondary, s...)
	}

	name, err = r.SynthesizeTagName(primary, secondary)
	if err != nil {
		return nil, false, err
	}

	rec := &tagdb.TagRecord{
		Name:       name,
		Category:   tagdb.CategoryArtist,
		OtherNames: dedupe(append(append([]string{}, primary...), secondary...)),
		URLs:       urls,
	}
	if err := r.store.CreateArtistTag(rec); err != nil {
		return nil, false, fmt.Errorf("failed to create tag %q: %w", name, err)
	}
	r.log.Info("Created artist tag %s covering %d urls", name, len(urls))
	return rec, true, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func subtract(in, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, s := range remove {
		drop[s] = true
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !drop[s] {
			out = append(out, s)
		}
	}
	return out
}
