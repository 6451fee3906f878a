package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// twitterParser covers twitter.com and its x.com rename, the pbs.twimg.com
// media CDN and the t.co shortener. Profile pages render behind JavaScript,
// so the identity fetch relies on the session's headless strategy.
//
//	https://twitter.com/noizave
//	https://x.com/noizave/status/1480373339613327360
//	https://twitter.com/i/web/status/1480373339613327360
//	https://twitter.com/intent/user?user_id=1485229827984531457
//	https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ?format=jpg&name=orig
//	https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ.jpg
//	https://t.co/Dxn7CuVErW
type twitterParser struct {
	env    *Env
	routes routeTable
}

// twitterReserved are path roots that are site chrome, not usernames.
var twitterReserved = map[string]bool{
	"i": true, "intent": true, "home": true, "search": true, "hashtag": true,
	"explore": true, "notifications": true, "messages": true, "settings": true,
	"about": true, "privacy": true, "tos": true, "login": true, "signup": true,
	"share": true,
}

func newTwitterParser(env *Env) *twitterParser {
	p := &twitterParser{env: env}
	notReserved := func(v Vars, _ *urlkit.Tokens) bool { return !twitterReserved[strings.ToLower(v["user"])] }

	p.routes = routeTable{routes: []route{
		{subdomain: "www|mobile|", path: "/i/web/status/:id", guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &TwitterStatusURL{base: base{site: "twitter", toks: t, env: p.env}, StatusID: v.Int("id")}
			}},
		{subdomain: "www|mobile|", path: "/:user/status/:id",
			guard: func(v Vars, t *urlkit.Tokens) bool { return isDigits(v["id"]) && !twitterReserved[v["user"]] },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &TwitterStatusURL{base: base{site: "twitter", toks: t, env: p.env},
					Username: v["user"], StatusID: v.Int("id")}
			}},
		{subdomain: "www|mobile|", path: "/intent/user", query: map[string]string{"user_id": ":id"},
			guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &TwitterIntentURL{base: base{site: "twitter", toks: t, env: p.env}, UserID: v.Int("id")}
			}},
		{subdomain: "www|mobile|", path: "/intent/user", query: map[string]string{"screen_name": ":user"},
			build: p.artist},
		{subdomain: "www|mobile|", path: "/hashtag/*rest", unsupported: true},
		{subdomain: "www|mobile|", path: "/search", unsupported: true},
		{subdomain: "www|mobile|", path: "/:user", guard: notReserved, build: p.artist},
		{subdomain: "www|mobile|", path: "/:user/:tab",
			guard: func(v Vars, t *urlkit.Tokens) bool {
				switch v["tab"] {
				case "media", "likes", "with_replies", "photo":
					return !twitterReserved[v["user"]]
				}
				return false
			},
			build: p.artist},
		// Media CDN.
		{subdomain: "pbs", path: "/media/:file",
			guard: func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "twimg.com" },
			build: func(v Vars, t *urlkit.Tokens) Source {
				key, ext := twimgKey(v["file"], t)
				return &TwitterImageURL{base: base{site: "twitter", toks: t, env: p.env}, Key: key, Ext: ext}
			}},
		{subdomain: "*", path: "*rest",
			guard:       func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "twimg.com" },
			unsupported: true},
		// Shortener.
		{subdomain: "", path: "/:code",
			guard: func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "t.co" },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &TCoURL{base: base{site: "twitter", toks: t, env: p.env}, Code: v["code"]}
			}},
	}}
	return p
}

func (p *twitterParser) Site() string      { return "twitter" }
func (p *twitterParser) Domains() []string { return []string{"twitter.com", "x.com", "twimg.com", "t.co"} }

func (p *twitterParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *twitterParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &TwitterArtistURL{base: base{site: "twitter", toks: t, env: p.env}, Username: v["user"]}
}

// twimgKey splits "FJBBiR1VkAAU9HJ.jpg" or a bare key plus ?format= query
// into key and extension.
func twimgKey(file string, t *urlkit.Tokens) (string, string) {
	if i := strings.LastIndex(file, "."); i > 0 {
		return file[:i], file[i+1:]
	}
	ext := t.Param("format")
	if ext == "" {
		ext = "jpg"
	}
	// ":orig"-style size suffixes attach to the key itself.
	if i := strings.Index(file, ":"); i > 0 {
		file = file[:i]
	}
	return file, ext
}

// TwitterArtistURL addresses a profile by screen name.
type TwitterArtistURL struct {
	base
	Username string

	prof memo[*profile]
}

// NewTwitterArtistURL builds the profile URL directly from a screen name.
func NewTwitterArtistURL(env *Env, username string) *TwitterArtistURL {
	return &TwitterArtistURL{base: base{site: "twitter", env: env}, Username: username}
}

func (u *TwitterArtistURL) String() string {
	return u.norm.get(func() string { return "https://twitter.com/" + u.Username })
}

func (u *TwitterArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
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

		// The rendered page titles profiles as `Name (@user) / X`.
		title, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
		if title == "" {
			title = doc.Find("title").Text()
		}
		if i := strings.Index(title, " (@"); i > 0 {
			p.Primary = []string{strings.TrimSpace(title[:i])}
		}
		return p, nil
	})
}

func (u *TwitterArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *TwitterArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *TwitterArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *TwitterArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

// TwitterStatusURL addresses a single tweet. Username is optional; the
// /i/web/ permalink form carries only the status id.
type TwitterStatusURL struct {
	base
	Username string
	StatusID int
}

func (u *TwitterStatusURL) String() string {
	return u.norm.get(func() string {
		if u.Username == "" {
			return fmt.Sprintf("https://twitter.com/i/web/status/%d", u.StatusID)
		}
		return fmt.Sprintf("https://twitter.com/%s/status/%d", u.Username, u.StatusID)
	})
}

func (u *TwitterStatusURL) Gallery(ctx context.Context) (Gallery, error) {
	return nil, fmt.Errorf("twitter profiles expose no enumerable gallery without API access")
}

func (u *TwitterStatusURL) Assets(ctx context.Context) ([]Source, error) {
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
		if content, ok := sel.Attr("content"); ok {
			raws = append(raws, content)
		}
	})
	return relatedFrom(u.env, raws)
}

func (u *TwitterStatusURL) CreatedAt(ctx context.Context) (time.Time, error) {
	return time.Time{}, fmt.Errorf("tweet timestamps are unavailable without API access")
}

func (u *TwitterStatusURL) Score(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("tweet scores are unavailable without API access")
}

// TwitterIntentURL addresses a profile by immutable numeric user id, the
// form that survives screen-name changes.
type TwitterIntentURL struct {
	base
	UserID int
}

func (u *TwitterIntentURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://twitter.com/intent/user?user_id=%d", u.UserID)
	})
}

func (u *TwitterIntentURL) PrimaryNames(ctx context.Context) ([]string, error)   { return nil, nil }
func (u *TwitterIntentURL) SecondaryNames(ctx context.Context) ([]string, error) { return nil, nil }
func (u *TwitterIntentURL) Related(ctx context.Context) ([]Source, error)        { return nil, nil }

func (u *TwitterIntentURL) IsDeleted(ctx context.Context) (bool, error) {
	return headDeleted(ctx, u.env, u.String())
}

// TwitterImageURL addresses one media file on the pbs CDN.
type TwitterImageURL struct {
	base
	Key string
	Ext string
}

func (u *TwitterImageURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://pbs.twimg.com/media/%s?format=%s&name=orig", u.Key, u.Ext)
	})
}

func (u *TwitterImageURL) Files(ctx context.Context) ([]File, error) {
	f, err := u.env.fetcher()
	if err != nil {
		return nil, err
	}
	data, err := f.Download(ctx, u.String())
	if err != nil {
		return nil, err
	}
	return []File{{Name: u.Key + "." + u.Ext, Data: data}}, nil
}

// TCoURL is the t.co shortener, a pure redirect.
type TCoURL struct {
	base
	Code string

	target memo[Source]
}

func (u *TCoURL) String() string {
	return u.norm.get(func() string { return "https://t.co/" + u.Code })
}

func (u *TCoURL) Resolved(ctx context.Context) (Source, error) {
	return u.target.do(func() (Source, error) {
		return resolveRedirect(ctx, u.env, u)
	})
}
