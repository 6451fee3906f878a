package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// boothParser covers booth.pm shops. Items appear both under the shared
// host with a locale prefix and under per-shop subdomains; the locale
// prefix is presentation only and is stripped during normalization.
//
//	https://booth.pm/en/items/2864768
//	https://booth.pm/ja/items/2864768
//	https://re-face.booth.pm/items/3435711
//	https://re-face.booth.pm/
type boothParser struct {
	env    *Env
	routes routeTable
}

func boothLocale(s string) bool {
	switch s {
	case "en", "ja", "ko", "zh-cn", "zh-tw":
		return true
	}
	return false
}

func newBoothParser(env *Env) *boothParser {
	p := &boothParser{env: env}
	p.routes = routeTable{routes: []route{
		{subdomain: "www|", path: "/:locale/items/:id",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return boothLocale(v["locale"]) && isDigits(v["id"]) },
			build: func(v Vars, t *urlkit.Tokens) Source { return p.item(t, "", v.Int("id")) }},
		{subdomain: "www|", path: "/items/:id", guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source { return p.item(t, "", v.Int("id")) }},
		{subdomain: ":shop", path: "/items/:id", guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source { return p.item(t, v["shop"], v.Int("id")) }},
		{subdomain: ":shop", path: "/:locale/items/:id",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return boothLocale(v["locale"]) && isDigits(v["id"]) },
			build: func(v Vars, t *urlkit.Tokens) Source { return p.item(t, v["shop"], v.Int("id")) }},
		{subdomain: ":shop", path: "",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return v["shop"] != "www" },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &BoothArtistURL{base: base{site: "booth", toks: t, env: p.env}, Shop: v["shop"]}
			}},
		{subdomain: ":shop", path: "/items",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return v["shop"] != "www" },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &BoothArtistURL{base: base{site: "booth", toks: t, env: p.env}, Shop: v["shop"]}
			}},
		// Homepage, checkout, search and the static browse pages carry no
		// identity.
		{subdomain: "www|", path: "", unsupported: true},
		{subdomain: "www|", path: "/cart/*rest", unsupported: true},
		{subdomain: "www|", path: "/search/*rest", unsupported: true},
		{subdomain: "www|", path: "/browse/*rest", unsupported: true},
	}}
	return p
}

func (p *boothParser) Site() string      { return "booth" }
func (p *boothParser) Domains() []string { return []string{"booth.pm"} }

func (p *boothParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *boothParser) item(t *urlkit.Tokens, shop string, id int) Source {
	return &BoothItemURL{base: base{site: "booth", toks: t, env: p.env}, Shop: shop, ItemID: id}
}

// BoothItemURL addresses one item. The shop subdomain is kept when known;
// the shared-host form without a locale prefix is the fallback canonical
// shape.
type BoothItemURL struct {
	base
	Shop   string
	ItemID int

	detail memo[*boothItem]
}

// NewBoothItemURL builds an item URL directly from known fields. shop may
// be empty.
func NewBoothItemURL(env *Env, shop string, itemID int) *BoothItemURL {
	return &BoothItemURL{base: base{site: "booth", env: env}, Shop: shop, ItemID: itemID}
}

func (u *BoothItemURL) String() string {
	return u.norm.get(func() string {
		if u.Shop != "" {
			return fmt.Sprintf("https://%s.booth.pm/items/%d", u.Shop, u.ItemID)
		}
		return fmt.Sprintf("https://booth.pm/items/%d", u.ItemID)
	})
}

type boothItem struct {
	Name        string `json:"name"`
	PublishedAt string `json:"published_at"`
	WishListsCount int `json:"wish_lists_count"`
	Images      []struct {
		Original string `json:"original"`
	} `json:"images"`
	Shop struct {
		Subdomain string `json:"subdomain"`
	} `json:"shop"`
}

func (u *BoothItemURL) fetchDetail(ctx context.Context) (*boothItem, error) {
	return u.detail.do(func() (*boothItem, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var item boothItem
		url := fmt.Sprintf("https://booth.pm/en/items/%d.json", u.ItemID)
		if err := f.FetchJSON(ctx, url, &item); err != nil {
			return nil, err
		}
		return &item, nil
	})
}

func (u *BoothItemURL) Gallery(ctx context.Context) (Gallery, error) {
	shop := u.Shop
	if shop == "" {
		item, err := u.fetchDetail(ctx)
		if err != nil {
			return nil, err
		}
		shop = item.Shop.Subdomain
	}
	if shop == "" {
		return nil, fmt.Errorf("booth item %d has no resolvable shop", u.ItemID)
	}
	return &BoothArtistURL{base: base{site: "booth", env: u.env}, Shop: shop}, nil
}

func (u *BoothItemURL) Assets(ctx context.Context) ([]Source, error) {
	item, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	var raws []string
	for _, img := range item.Images {
		raws = append(raws, img.Original)
	}
	return relatedFrom(u.env, raws)
}

func (u *BoothItemURL) CreatedAt(ctx context.Context) (time.Time, error) {
	item, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, item.PublishedAt)
}

func (u *BoothItemURL) Score(ctx context.Context) (int, error) {
	item, err := u.fetchDetail(ctx)
	if err != nil {
		return 0, err
	}
	return item.WishListsCount, nil
}

// BoothArtistURL addresses a shop.
type BoothArtistURL struct {
	base
	Shop string

	prof memo[*profile]
}

func (u *BoothArtistURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://%s.booth.pm", u.Shop) })
}

func (u *BoothArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
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

		p := &profile{Secondary: []string{u.Shop}}
		if name := strings.TrimSpace(doc.Find(".shop-name, .home-link-container__nickname").First().Text()); name != "" {
			p.Primary = []string{name}
		}

		var raws []string
		doc.Find(".shop-contacts a, .shop-head a").Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok && strings.HasPrefix(href, "http") {
				raws = append(raws, href)
			}
		})
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}
		p.Related = related
		return p, nil
	})
}

func (u *BoothArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *BoothArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *BoothArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *BoothArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}
