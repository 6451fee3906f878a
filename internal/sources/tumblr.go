package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// tumblrParser covers tumblr.com and the media host. Blogs appear both as
// subdomains and, after the 2022 redesign, as www paths.
//
//	https://noizave.tumblr.com
//	https://noizave.tumblr.com/post/162206271767
//	https://noizave.tumblr.com/post/162206271767/some-slug
//	https://www.tumblr.com/noizave
//	https://www.tumblr.com/noizave/162206271767
//	https://64.media.tumblr.com/.../tumblr_os2buiIOt51wsfqepo1_1280.png
type tumblrParser struct {
	env    *Env
	routes routeTable
}

var tumblrReserved = map[string]bool{
	"dashboard": true,
	"explore":   true,
	"settings":  true,
	"tagged":    true,
	"search":    true,
	"blog":      true,
	"post":      true,
	"image":     true,
	"login":     true,
	"register":  true,
	"policy":    true,
	"support":   true,
	"apps":      true,
}

func newTumblrParser(env *Env) *tumblrParser {
	p := &tumblrParser{env: env}
	notReserved := func(v Vars, _ *urlkit.Tokens) bool { return !tumblrReserved[v["blog"]] }
	p.routes = routeTable{routes: []route{
		// Media host first: its subdomains would otherwise look like blogs.
		{subdomain: "*", path: "*rest",
			guard:       func(v Vars, t *urlkit.Tokens) bool { return isTumblrMediaHost(t) },
			unsupported: true},

		// Redesign paths on www.
		{subdomain: "www|", path: "/blog/view/:blog/:id", guard: Digits("id"), build: p.wwwPost},
		{subdomain: "www|", path: "/blog/view/:blog", build: p.wwwArtist},
		{subdomain: "www|", path: "/blog/:blog", guard: notReserved, build: p.wwwArtist},
		{subdomain: "www|", path: "/:blog/:id/*rest", guard: func(v Vars, t *urlkit.Tokens) bool {
			return notReserved(v, t) && isDigits(v["id"])
		}, build: p.wwwPost},
		{subdomain: "www|", path: "/:blog", guard: notReserved, build: p.wwwArtist},
		// Remaining www shapes are dashboard chrome.
		{subdomain: "www|", path: "*rest", unsupported: true},

		// Classic blog subdomains.
		{subdomain: ":blog", path: "/post/:id/*rest", guard: Digits("id"), build: p.post},
		{subdomain: ":blog", path: "/image/:id", guard: Digits("id"), build: p.post},
		{subdomain: ":blog", path: "", build: p.artist},
		{subdomain: ":blog", path: "/archive", build: p.artist},
		{subdomain: ":blog", path: "/tagged/*rest", unsupported: true},
	}}
	return p
}

func (p *tumblrParser) Site() string      { return "tumblr" }
func (p *tumblrParser) Domains() []string { return []string{"tumblr.com"} }

func (p *tumblrParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *tumblrParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &TumblrArtistURL{base: base{site: "tumblr", toks: t, env: p.env}, Blog: v["blog"]}
}

func (p *tumblrParser) wwwArtist(v Vars, t *urlkit.Tokens) Source {
	return p.artist(v, t)
}

func (p *tumblrParser) post(v Vars, t *urlkit.Tokens) Source {
	return &TumblrPostURL{base: base{site: "tumblr", toks: t, env: p.env},
		Blog: v["blog"], PostID: v.Int("id")}
}

func (p *tumblrParser) wwwPost(v Vars, t *urlkit.Tokens) Source {
	return p.post(v, t)
}

func isTumblrMediaHost(t *urlkit.Tokens) bool {
	return strings.HasSuffix(t.Subdomain, "media") || t.Subdomain == "assets" || t.Subdomain == "static"
}

// TumblrArtistURL addresses a blog, which doubles as the artist identity.
type TumblrArtistURL struct {
	base
	Blog string

	prof  memo[*profile]
	posts memo[[]Source]
}

func (u *TumblrArtistURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://%s.tumblr.com", u.Blog) })
}

func (u *TumblrArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
	return u.prof.do(func() (*profile, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		doc, err := f.FetchHTML(ctx, u.String())
		if err != nil {
			if isNotFoundErr(err) {
				return &profile{Deleted: true}, nil
			}
			return nil, err
		}

		p := &profile{}
		if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			if title = strings.TrimSpace(title); title != "" && !strings.EqualFold(title, u.Blog) {
				p.Primary = []string{title}
			}
		}
		related, err := relatedFrom(u.env, scrapeExternalLinks(doc, "tumblr.com"))
		if err != nil {
			return nil, err
		}
		p.Related = related
		return p, nil
	})
}

func (u *TumblrArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *TumblrArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *TumblrArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *TumblrArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func (u *TumblrArtistURL) Posts(ctx context.Context) ([]Source, error) {
	return u.posts.do(func() ([]Source, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		doc, err := f.FetchHTML(ctx, u.String()+"/archive")
		if err != nil {
			return nil, err
		}
		var raws []string
		doc.Find(`a[href*="/post/"]`).Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				raws = append(raws, href)
			}
		})
		return relatedFrom(u.env, raws)
	})
}

// TumblrPostURL addresses one post. Slugs are decorative and dropped from
// the canonical form.
type TumblrPostURL struct {
	base
	Blog   string
	PostID int
}

func (u *TumblrPostURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://%s.tumblr.com/post/%d", u.Blog, u.PostID)
	})
}

func (u *TumblrPostURL) Gallery(ctx context.Context) (Gallery, error) {
	return &TumblrArtistURL{base: base{site: "tumblr", env: u.env}, Blog: u.Blog}, nil
}

func (u *TumblrPostURL) Assets(ctx context.Context) ([]Source, error) {
	f, err := u.env.fetcher()
	if err != nil {
		return nil, err
	}
	doc, err := f.FetchHTML(ctx, u.String())
	if err != nil {
		return nil, err
	}
	var raws []string
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("content"); ok && src != "" {
			raws = append(raws, src)
		}
	})
	return relatedFrom(u.env, raws)
}

func (u *TumblrPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	f, err := u.env.fetcher()
	if err != nil {
		return time.Time{}, err
	}
	doc, err := f.FetchHTML(ctx, u.String())
	if err != nil {
		return time.Time{}, err
	}
	if stamp, ok := doc.Find(`meta[property="article:published_time"]`).Attr("content"); ok {
		return time.Parse(time.RFC3339, stamp)
	}
	return time.Time{}, fmt.Errorf("tumblr post %d exposes no publish timestamp", u.PostID)
}

func (u *TumblrPostURL) Score(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("tumblr exposes no machine-readable note count without API credentials")
}
