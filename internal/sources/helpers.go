package sources

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/session"
)

// scrapeExternalLinks collects absolute off-site hrefs from a page,
// excluding links back to ownDomain. This is the generic related-link
// harvest for platforms without a profile API.
func scrapeExternalLinks(doc *goquery.Document, ownDomain string) []string {
	var raws []string
	doc.Find(`a[href^="http"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.Contains(href, ownDomain) {
			return
		}
		raws = append(raws, href)
	})
	return raws
}

// isNotFoundErr reports whether a fetch failed with a 404/410, the default
// "resource deleted" signal.
func isNotFoundErr(err error) bool {
	var se *session.StatusError
	return errors.As(err, &se) && (se.Code == 404 || se.Code == 410)
}

// Resolve is the parse entry point lazy properties use to type the URLs
// they scrape off pages. It is assigned once during wiring, after the
// resolver exists; parsers hold the same *Env, so the assignment is visible
// to every source they build.
func (e *Env) resolve(raw string) (Source, error) {
	if e == nil || e.Resolve == nil {
		return nil, errNoFetcher
	}
	return e.Resolve(raw)
}

// relatedFrom types a list of scraped href strings. Malformed strings and
// deliberately unsupported shapes are permanent properties of the input and
// are dropped; any other failure (unhandled shapes included) propagates, so
// a related list is either complete or an error, never silently partial.
func relatedFrom(e *Env, raws []string) ([]Source, error) {
	var out []Source
	for _, raw := range raws {
		if raw == "" {
			continue
		}
		src, err := e.resolve(raw)
		if err != nil {
			var malformed *errors.MalformedURLError
			if errors.As(err, &malformed) || errors.Is(err, errors.ErrUnsupportedShape) {
				if e.Logger != nil {
					e.Logger.Debug("Dropping unusable related url %q: %v", raw, err)
				}
				continue
			}
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// resolveRedirect follows a redirect source to its typed target.
func resolveRedirect(ctx context.Context, e *Env, from Source) (Source, error) {
	f, err := e.fetcher()
	if err != nil {
		return nil, err
	}
	target, err := f.ResolveRedirect(ctx, from.String())
	if err != nil {
		return nil, err
	}
	return e.resolve(target)
}

// singleFile is the default Asset materialization: the URL's bytes as one
// file named after the final path segment.
func singleFile(ctx context.Context, e *Env, src Source) ([]File, error) {
	f, err := e.fetcher()
	if err != nil {
		return nil, err
	}
	data, err := f.Download(ctx, src.String())
	if err != nil {
		return nil, err
	}
	name := src.String()
	if toks := src.Tokens(); toks != nil && len(toks.Segments) > 0 {
		name = toks.Segments[len(toks.Segments)-1]
	}
	return []File{{Name: name, Data: data}}, nil
}
