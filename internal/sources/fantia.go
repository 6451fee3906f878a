package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// fantiaParser covers fantia.jp.
//
//	https://fantia.jp/posts/1148334
//	https://fantia.jp/fanclubs/64496
//	https://fantia.jp/fanclubs/64496/posts
//	https://fantia.jp/asanagi            (vanity fanclub path)
type fantiaParser struct {
	env    *Env
	routes routeTable
}

var fantiaReserved = map[string]bool{
	"posts":         true,
	"fanclubs":      true,
	"products":      true,
	"mypage":        true,
	"sessions":      true,
	"recommended":   true,
	"categories":    true,
	"events":        true,
	"auth":          true,
	"api":           true,
	"conversations": true,
}

func newFantiaParser(env *Env) *fantiaParser {
	p := &fantiaParser{env: env}
	p.routes = routeTable{routes: []route{
		{subdomain: "www|", path: "/posts/:id", guard: Digits("id"), build: p.post},
		{subdomain: "www|", path: "/fanclubs/:id/*rest", guard: Digits("id"), build: p.fanclub},
		{subdomain: "www|", path: "/products/:id", guard: Digits("id"), build: p.product},
		// Vanity path redirects to the numeric fanclub page.
		{subdomain: "www|", path: "/:name",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return !fantiaReserved[v["name"]] },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &FantiaVanityURL{base: base{site: "fantia", toks: t, env: p.env}, Name: v["name"]}
			}},
		{subdomain: "c", path: "*rest", unsupported: true},
		{subdomain: "www|", path: "", unsupported: true},
	}}
	return p
}

func (p *fantiaParser) Site() string      { return "fantia" }
func (p *fantiaParser) Domains() []string { return []string{"fantia.jp"} }

func (p *fantiaParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *fantiaParser) post(v Vars, t *urlkit.Tokens) Source {
	return &FantiaPostURL{base: base{site: "fantia", toks: t, env: p.env}, PostID: v.Int("id")}
}

func (p *fantiaParser) fanclub(v Vars, t *urlkit.Tokens) Source {
	return &FantiaFanclubURL{base: base{site: "fantia", toks: t, env: p.env}, FanclubID: v.Int("id")}
}

func (p *fantiaParser) product(v Vars, t *urlkit.Tokens) Source {
	return &FantiaProductURL{base: base{site: "fantia", toks: t, env: p.env}, ProductID: v.Int("id")}
}

type fantiaPostBody struct {
	Post struct {
		PostedAt    string `json:"posted_at"`
		LikesCount  int    `json:"likes_count"`
		Fanclub     struct {
			ID int `json:"id"`
		} `json:"fanclub"`
		PostContents []struct {
			Category string `json:"category"`
			URL      string `json:"download_uri"`
		} `json:"post_contents"`
		Thumb struct {
			Original string `json:"original"`
		} `json:"thumb"`
	} `json:"post"`
}

// FantiaPostURL addresses one post; detail comes from the JSON API the web
// client itself uses.
type FantiaPostURL struct {
	base
	PostID int

	detail memo[*fantiaPostBody]
}

func (u *FantiaPostURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://fantia.jp/posts/%d", u.PostID) })
}

func (u *FantiaPostURL) fetchDetail(ctx context.Context) (*fantiaPostBody, error) {
	return u.detail.do(func() (*fantiaPostBody, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var body fantiaPostBody
		url := fmt.Sprintf("https://fantia.jp/api/v1/posts/%d", u.PostID)
		if err := f.FetchJSON(ctx, url, &body); err != nil {
			return nil, err
		}
		return &body, nil
	})
}

func (u *FantiaPostURL) Gallery(ctx context.Context) (Gallery, error) {
	body, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	if body.Post.Fanclub.ID == 0 {
		return nil, fmt.Errorf("fantia post %d reports no fanclub", u.PostID)
	}
	return NewFantiaFanclubURL(u.env, body.Post.Fanclub.ID), nil
}

func (u *FantiaPostURL) Assets(ctx context.Context) ([]Source, error) {
	body, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	var raws []string
	if body.Post.Thumb.Original != "" {
		raws = append(raws, body.Post.Thumb.Original)
	}
	for _, c := range body.Post.PostContents {
		if c.URL != "" {
			raws = append(raws, absoluteFantiaURL(c.URL))
		}
	}
	return relatedFrom(u.env, raws)
}

func (u *FantiaPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	body, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	// posted_at is RFC1123-ish: "Mon, 19 Jul 2021 21:30:00 +0900".
	return time.Parse("Mon, 02 Jan 2006 15:04:05 -0700", body.Post.PostedAt)
}

func (u *FantiaPostURL) Score(ctx context.Context) (int, error) {
	body, err := u.fetchDetail(ctx)
	if err != nil {
		return 0, err
	}
	return body.Post.LikesCount, nil
}

type fantiaFanclubBody struct {
	Fanclub struct {
		FanclubNameWithCreatorName string `json:"fanclub_name_with_creator_name"`
		CreatorName                string `json:"creator_name"`
		Name                       string `json:"name"`
		WebsiteURL                 string `json:"website_url"`
		TwitterURL                 string `json:"twitter_url"`
	} `json:"fanclub"`
}

// FantiaFanclubURL addresses a creator's fanclub page; it is both the
// artist identity on the platform and the listing of their posts.
type FantiaFanclubURL struct {
	base
	FanclubID int

	prof  memo[*profile]
	posts memo[[]Source]
}

// NewFantiaFanclubURL builds the fanclub URL from a numeric id.
func NewFantiaFanclubURL(env *Env, fanclubID int) *FantiaFanclubURL {
	return &FantiaFanclubURL{base: base{site: "fantia", env: env}, FanclubID: fanclubID}
}

func (u *FantiaFanclubURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://fantia.jp/fanclubs/%d", u.FanclubID) })
}

func (u *FantiaFanclubURL) fetchProfile(ctx context.Context) (*profile, error) {
	return u.prof.do(func() (*profile, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var body fantiaFanclubBody
		url := fmt.Sprintf("https://fantia.jp/api/v1/fanclubs/%d", u.FanclubID)
		if err := f.FetchJSON(ctx, url, &body); err != nil {
			if isNotFoundErr(err) {
				return &profile{Deleted: true}, nil
			}
			return nil, err
		}

		p := &profile{}
		if body.Fanclub.CreatorName != "" {
			p.Primary = append(p.Primary, body.Fanclub.CreatorName)
		}
		if body.Fanclub.Name != "" && body.Fanclub.Name != body.Fanclub.CreatorName {
			p.Secondary = append(p.Secondary, body.Fanclub.Name)
		}
		var raws []string
		for _, raw := range []string{body.Fanclub.WebsiteURL, body.Fanclub.TwitterURL} {
			if raw != "" {
				raws = append(raws, raw)
			}
		}
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}
		p.Related = related
		return p, nil
	})
}

func (u *FantiaFanclubURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *FantiaFanclubURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *FantiaFanclubURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *FantiaFanclubURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func (u *FantiaFanclubURL) Posts(ctx context.Context) ([]Source, error) {
	return u.posts.do(func() ([]Source, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		url := fmt.Sprintf("https://fantia.jp/fanclubs/%d/posts", u.FanclubID)
		doc, err := f.FetchHTML(ctx, url)
		if err != nil {
			return nil, err
		}
		var raws []string
		doc.Find(`a[href^="/posts/"]`).Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				raws = append(raws, absoluteFantiaURL(href))
			}
		})
		return relatedFrom(u.env, raws)
	})
}

// FantiaProductURL addresses a shop item; it participates in the graph only
// through its fanclub.
type FantiaProductURL struct {
	base
	ProductID int
}

func (u *FantiaProductURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://fantia.jp/products/%d", u.ProductID) })
}

// FantiaVanityURL is a creator-chosen alias path that redirects to the
// numeric fanclub page.
type FantiaVanityURL struct {
	base
	Name string
}

func (u *FantiaVanityURL) String() string {
	return u.norm.get(func() string { return "https://fantia.jp/" + u.Name })
}

func (u *FantiaVanityURL) Resolved(ctx context.Context) (Source, error) {
	return resolveRedirect(ctx, u.env, u)
}

func absoluteFantiaURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return "https://fantia.jp" + href
	}
	return href
}
