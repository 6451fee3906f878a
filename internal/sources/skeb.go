package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// skebParser covers skeb.jp. Creator pages live under "@"-prefixed path
// segments; everything else at the top level is site chrome.
//
//	https://skeb.jp/@kaisouafuro
//	https://skeb.jp/@kaisouafuro/works/112
type skebParser struct {
	env    *Env
	routes routeTable
}

func newSkebParser(env *Env) *skebParser {
	p := &skebParser{env: env}
	atPrefixed := func(v Vars, _ *urlkit.Tokens) bool { return strings.HasPrefix(v["at"], "@") && len(v["at"]) > 1 }
	p.routes = routeTable{routes: []route{
		{subdomain: "www|", path: "/:at/works/:id", guard: func(v Vars, t *urlkit.Tokens) bool {
			return atPrefixed(v, t) && isDigits(v["id"])
		}, build: p.work},
		{subdomain: "www|", path: "/:at", guard: atPrefixed, build: p.artist},
		{subdomain: "www|", path: "/:at/*rest", guard: atPrefixed, build: p.artist},
		{subdomain: "www|", path: "", unsupported: true},
		{subdomain: "www|", path: "/works", unsupported: true},
		{subdomain: "www|", path: "/search", unsupported: true},
	}}
	return p
}

func (p *skebParser) Site() string      { return "skeb" }
func (p *skebParser) Domains() []string { return []string{"skeb.jp"} }

func (p *skebParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *skebParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &SkebArtistURL{base: base{site: "skeb", toks: t, env: p.env}, Username: v["at"][1:]}
}

func (p *skebParser) work(v Vars, t *urlkit.Tokens) Source {
	return &SkebPostURL{base: base{site: "skeb", toks: t, env: p.env},
		Username: v["at"][1:], WorkID: v.Int("id")}
}

type skebUserBody struct {
	Name       string `json:"name"`
	ScreenName string `json:"screen_name"`
	URL        string `json:"url"`
	Deleted    bool   `json:"deleted_at_present"`
}

// SkebArtistURL addresses a creator page.
type SkebArtistURL struct {
	base
	Username string

	prof  memo[*profile]
	posts memo[[]Source]
}

func (u *SkebArtistURL) String() string {
	return u.norm.get(func() string { return "https://skeb.jp/@" + u.Username })
}

func (u *SkebArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
	return u.prof.do(func() (*profile, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var body skebUserBody
		url := "https://skeb.jp/api/users/" + u.Username
		if err := f.FetchJSON(ctx, url, &body); err != nil {
			if isNotFoundErr(err) {
				return &profile{Deleted: true}, nil
			}
			return nil, err
		}

		p := &profile{Deleted: body.Deleted}
		if p.Deleted {
			return p, nil
		}
		if body.Name != "" {
			p.Primary = []string{body.Name}
		}
		var raws []string
		if body.URL != "" {
			raws = append(raws, body.URL)
		}
		// Skeb accounts are Twitter-backed; the screen name is the handle.
		if body.ScreenName != "" {
			raws = append(raws, "https://twitter.com/"+body.ScreenName)
		}
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}
		p.Related = related
		return p, nil
	})
}

func (u *SkebArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *SkebArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *SkebArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *SkebArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func (u *SkebArtistURL) Posts(ctx context.Context) ([]Source, error) {
	return u.posts.do(func() ([]Source, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var works []struct {
			Path string `json:"path"`
		}
		url := fmt.Sprintf("https://skeb.jp/api/users/%s/works?role=creator&sort=date", u.Username)
		if err := f.FetchJSON(ctx, url, &works); err != nil {
			return nil, err
		}
		raws := make([]string, 0, len(works))
		for _, w := range works {
			if w.Path != "" {
				raws = append(raws, "https://skeb.jp"+w.Path)
			}
		}
		return relatedFrom(u.env, raws)
	})
}

type skebWorkBody struct {
	CompletedAt string `json:"completed_at"`
	Previews    []struct {
		URL string `json:"url"`
	} `json:"previews"`
}

// SkebPostURL addresses one commissioned work.
type SkebPostURL struct {
	base
	Username string
	WorkID   int

	detail memo[*skebWorkBody]
}

func (u *SkebPostURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://skeb.jp/@%s/works/%d", u.Username, u.WorkID)
	})
}

func (u *SkebPostURL) fetchDetail(ctx context.Context) (*skebWorkBody, error) {
	return u.detail.do(func() (*skebWorkBody, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var body skebWorkBody
		url := fmt.Sprintf("https://skeb.jp/api/users/%s/works/%d", u.Username, u.WorkID)
		if err := f.FetchJSON(ctx, url, &body); err != nil {
			return nil, err
		}
		return &body, nil
	})
}

func (u *SkebPostURL) Gallery(ctx context.Context) (Gallery, error) {
	return &SkebArtistURL{base: base{site: "skeb", env: u.env}, Username: u.Username}, nil
}

func (u *SkebPostURL) Assets(ctx context.Context) ([]Source, error) {
	body, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	raws := make([]string, 0, len(body.Previews))
	for _, pr := range body.Previews {
		if pr.URL != "" {
			raws = append(raws, pr.URL)
		}
	}
	return relatedFrom(u.env, raws)
}

func (u *SkebPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	body, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, body.CompletedAt)
}

func (u *SkebPostURL) Score(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("skeb exposes no public work score")
}
