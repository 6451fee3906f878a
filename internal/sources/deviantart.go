package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// deviantArtParser covers deviantart.com, the fav.me shortener and the
// wixmp.com image CDN DeviantArt migrated onto.
//
//	https://www.deviantart.com/noizave/art/test-post-please-ignore-685436408
//	https://www.deviantart.com/deviation/685436408
//	https://noizave.deviantart.com/art/test-post-please-ignore-685436408
//	https://www.deviantart.com/noizave
//	https://fav.me/dbc3a48
//	https://images-wixmp-ed30a86b8c4ca887773594c2.wixmp.com/f/.../dbc3a48-a4b6-...-hero.png
type deviantArtParser struct {
	env    *Env
	routes routeTable
}

var deviantArtReserved = map[string]bool{
	"art": true, "deviation": true, "users": true, "join": true, "search": true,
	"shop": true, "tag": true, "topic": true, "watch": true, "daily-deviations": true,
}

func newDeviantArtParser(env *Env) *deviantArtParser {
	p := &deviantArtParser{env: env}
	p.routes = routeTable{routes: []route{
		{subdomain: "www|", path: "/:user/art/:slug",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return deviationSlugID(v["slug"]) > 0 },
			build: func(v Vars, t *urlkit.Tokens) Source { return p.post(t, v["user"], v["slug"]) }},
		{subdomain: "www|", path: "/art/:slug",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return deviationSlugID(v["slug"]) > 0 },
			build: func(v Vars, t *urlkit.Tokens) Source { return p.post(t, "", v["slug"]) }},
		{subdomain: "www|", path: "/deviation/:id", guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &DeviantArtPostURL{base: base{site: "deviantart", toks: t, env: p.env},
					DeviationID: v.Int("id")}
			}},
		{subdomain: "www|", path: "/:user",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return !deviantArtReserved[strings.ToLower(v["user"])] },
			build: p.artist},
		{subdomain: "www|", path: "/:user/gallery/*rest",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return !deviantArtReserved[strings.ToLower(v["user"])] },
			build: p.artist},
		// Pre-2020 artist-scoped hosts.
		{subdomain: ":user", path: "/art/:slug",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return deviationSlugID(v["slug"]) > 0 && v["user"] != "www" },
			build: func(v Vars, t *urlkit.Tokens) Source { return p.post(t, v["user"], v["slug"]) }},
		{subdomain: ":user", path: "",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return v["user"] != "www" },
			build: p.artist},
		// Shortener: the path is the deviation id in base36, "d"-prefixed.
		{subdomain: "", path: "/:code",
			guard: func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "fav.me" && strings.HasPrefix(v["code"], "d") },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &FavMeURL{base: base{site: "deviantart", toks: t, env: p.env}, Code: v["code"]}
			}},
		// CDN files carry `{title}_by_{user}_d{base36}-suffix.ext` names;
		// anything that doesn't is an avatar or site asset.
		{subdomain: "*", path: "*rest",
			guard: func(v Vars, t *urlkit.Tokens) bool {
				return t.Domain == "wixmp.com" && wixmpFileInfo(t) != nil
			},
			build: func(v Vars, t *urlkit.Tokens) Source {
				info := wixmpFileInfo(t)
				return &DeviantArtImageURL{base: base{site: "deviantart", toks: t, env: p.env},
					Username: info.username, DeviationID: info.deviationID}
			}},
		{subdomain: "*", path: "*rest",
			guard:       func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "wixmp.com" },
			unsupported: true},
	}}
	return p
}

func (p *deviantArtParser) Site() string { return "deviantart" }
func (p *deviantArtParser) Domains() []string {
	return []string{"deviantart.com", "fav.me", "wixmp.com"}
}

func (p *deviantArtParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *deviantArtParser) post(t *urlkit.Tokens, user, slug string) Source {
	id := deviationSlugID(slug)
	title := slug
	if i := strings.LastIndex(slug, "-"); i > 0 {
		title = slug[:i]
	}
	return &DeviantArtPostURL{base: base{site: "deviantart", toks: t, env: p.env},
		Username: user, Title: title, DeviationID: id}
}

func (p *deviantArtParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &DeviantArtArtistURL{base: base{site: "deviantart", toks: t, env: p.env}, Username: v["user"]}
}

// deviationSlugID extracts the numeric id from a `title-12345` slug, 0 when
// the slug has no numeric tail.
func deviationSlugID(slug string) int {
	i := strings.LastIndex(slug, "-")
	if i < 0 || !isDigits(slug[i+1:]) {
		return 0
	}
	return mustAtoi(slug[i+1:])
}

type wixmpInfo struct {
	username    string
	deviationID int
}

// wixmpFileInfo parses the CDN filename convention
// `{title}_by_{user}_d{base36}-size.ext`. Observed corpus:
//
//	test_post_please_ignore_by_noizave_dbc3a48-pre.jpg
//	by_noizave_dbc3a48-fullview.png
func wixmpFileInfo(t *urlkit.Tokens) *wixmpInfo {
	if len(t.Segments) == 0 {
		return nil
	}
	name := t.Segments[len(t.Segments)-1]
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	i := strings.LastIndex(name, "_by_")
	if i < 0 {
		return nil
	}
	tail := name[i+len("_by_"):]
	j := strings.LastIndex(tail, "_d")
	if j < 0 {
		return nil
	}
	code := tail[j+2:]
	if k := strings.Index(code, "-"); k > 0 {
		code = code[:k]
	}
	id, err := strconv.ParseInt(code, 36, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &wixmpInfo{username: tail[:j], deviationID: int(id)}
}

// DeviantArtPostURL addresses one deviation. The canonical form uses
// username and title when both are known; the bare /deviation/:id permalink
// is the fallback for ids harvested from filenames or shortlinks.
type DeviantArtPostURL struct {
	base
	Username    string
	Title       string
	DeviationID int

	detail memo[*deviantArtOEmbed]
}

func (u *DeviantArtPostURL) String() string {
	return u.norm.get(func() string {
		if u.Username != "" && u.Title != "" {
			return fmt.Sprintf("https://www.deviantart.com/%s/art/%s-%d", u.Username, u.Title, u.DeviationID)
		}
		return fmt.Sprintf("https://www.deviantart.com/deviation/%d", u.DeviationID)
	})
}

type deviantArtOEmbed struct {
	AuthorName string `json:"author_name"`
	URL        string `json:"url"`
	Pubdate    string `json:"pubdate"`
	Community  struct {
		Statistics struct {
			Attributes struct {
				Favorites int `json:"ds:favourites"`
			} `json:"_attributes"`
		} `json:"statistics"`
	} `json:"community"`
}

func (u *DeviantArtPostURL) fetchDetail(ctx context.Context) (*deviantArtOEmbed, error) {
	return u.detail.do(func() (*deviantArtOEmbed, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var oe deviantArtOEmbed
		url := "https://backend.deviantart.com/oembed?url=" + u.String()
		if err := f.FetchJSON(ctx, url, &oe); err != nil {
			return nil, err
		}
		return &oe, nil
	})
}

func (u *DeviantArtPostURL) Gallery(ctx context.Context) (Gallery, error) {
	user := u.Username
	if user == "" {
		oe, err := u.fetchDetail(ctx)
		if err != nil {
			return nil, err
		}
		user = oe.AuthorName
	}
	if user == "" {
		return nil, fmt.Errorf("deviation %d has no resolvable author", u.DeviationID)
	}
	return &DeviantArtArtistURL{base: base{site: "deviantart", env: u.env}, Username: user}, nil
}

func (u *DeviantArtPostURL) Assets(ctx context.Context) ([]Source, error) {
	oe, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	if oe.URL == "" {
		return nil, nil
	}
	return relatedFrom(u.env, []string{oe.URL})
}

func (u *DeviantArtPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	oe, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC1123, oe.Pubdate)
}

func (u *DeviantArtPostURL) Score(ctx context.Context) (int, error) {
	oe, err := u.fetchDetail(ctx)
	if err != nil {
		return 0, err
	}
	return oe.Community.Statistics.Attributes.Favorites, nil
}

// DeviantArtArtistURL addresses a user page.
type DeviantArtArtistURL struct {
	base
	Username string

	prof memo[*profile]
}

// NewDeviantArtArtistURL builds the artist URL directly from a username.
func NewDeviantArtArtistURL(env *Env, username string) *DeviantArtArtistURL {
	return &DeviantArtArtistURL{base: base{site: "deviantart", env: env}, Username: username}
}

func (u *DeviantArtArtistURL) String() string {
	return u.norm.get(func() string { return "https://www.deviantart.com/" + strings.ToLower(u.Username) })
}

func (u *DeviantArtArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
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

		p := &profile{Secondary: []string{u.Username}}
		if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			// `Name - Professional Artist | DeviantArt`
			if i := strings.Index(title, " - "); i > 0 {
				p.Primary = []string{strings.TrimSpace(title[:i])}
			}
		}
		related, err := relatedFrom(u.env, scrapeExternalLinks(doc, "deviantart.com"))
		if err != nil {
			return nil, err
		}
		p.Related = related
		return p, nil
	})
}

func (u *DeviantArtArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *DeviantArtArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *DeviantArtArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *DeviantArtArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

// FavMeURL is the fav.me shortener; the code is the deviation id in base36,
// so the target is known without a network hop.
type FavMeURL struct {
	base
	Code string
}

func (u *FavMeURL) String() string {
	return u.norm.get(func() string { return "https://fav.me/" + u.Code })
}

func (u *FavMeURL) Resolved(ctx context.Context) (Source, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(u.Code, "d"), 36, 64)
	if err != nil {
		return nil, fmt.Errorf("fav.me code %q is not base36: %w", u.Code, err)
	}
	return &DeviantArtPostURL{base: base{site: "deviantart", env: u.env}, DeviationID: int(id)}, nil
}

// DeviantArtImageURL addresses a CDN file; username and deviation id come
// from the filename convention.
type DeviantArtImageURL struct {
	base
	Username    string
	DeviationID int
}

func (u *DeviantArtImageURL) String() string {
	return u.norm.get(func() string { return u.toks.Raw })
}

func (u *DeviantArtImageURL) Files(ctx context.Context) ([]File, error) {
	return singleFile(ctx, u.env, u)
}

// PostURL returns the deviation this file belongs to.
func (u *DeviantArtImageURL) PostURL() *DeviantArtPostURL {
	return &DeviantArtPostURL{base: base{site: "deviantart", env: u.env},
		Username: u.Username, DeviationID: u.DeviationID}
}
