package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// artStationParser covers artstation.com and its cdn hosts. Portfolios live
// on per-artist subdomains; the www host serves both profile pages and an
// older /artwork/:slug permalink that redirects to the owning portfolio.
//
//	https://www.artstation.com/artwork/cody-from-sf
//	https://sa-dui.artstation.com/projects/DVERn
//	https://www.artstation.com/sa-dui
//	https://www.artstation.com/artist/sa-dui
//	https://cdna.artstation.com/p/assets/images/images/005/032/921/large/sa-dui-commission.jpg
type artStationParser struct {
	env    *Env
	routes routeTable
}

// artStationReserved are www path roots that are site chrome, not usernames.
var artStationReserved = map[string]bool{
	"artwork": true, "artist": true, "projects": true, "search": true,
	"marketplace": true, "blogs": true, "jobs": true, "learning": true,
	"prints": true, "about": true, "contests": true, "users": true,
}

// artStationCDN are subdomains serving assets rather than pages.
var artStationCDN = map[string]bool{
	"cdn": true, "cdna": true, "cdnb": true, "cdn-animation": true,
}

func newArtStationParser(env *Env) *artStationParser {
	p := &artStationParser{env: env}
	p.routes = routeTable{routes: []route{
		// Old-style permalink; the slug alone does not identify the artist,
		// the site redirects to the owning portfolio.
		{subdomain: "www|", path: "/artwork/:slug",
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &ArtStationOldPostURL{base: base{site: "artstation", toks: t, env: p.env}, Slug: v["slug"]}
			}},
		{subdomain: "www|", path: "", unsupported: true},
		{subdomain: "www|", path: "/artist/:user", build: p.artist},
		{subdomain: "www|", path: "/users/:user/*rest", build: p.artist},
		{subdomain: "www|", path: "/:user",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return !artStationReserved[strings.ToLower(v["user"])] },
			build: p.artist},
		// Artist-scoped portfolio hosts.
		{subdomain: ":user", path: "/projects/:id",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return !artStationCDN[v["user"]] && v["user"] != "www" },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &ArtStationPostURL{base: base{site: "artstation", toks: t, env: p.env},
					Username: v["user"], PostID: v["id"]}
			}},
		{subdomain: ":user", path: "",
			guard: func(v Vars, _ *urlkit.Tokens) bool { return !artStationCDN[v["user"]] && v["user"] != "www" },
			build: p.artist},
		{subdomain: "*", path: "/p/assets/*rest",
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &ArtStationImageURL{base: base{site: "artstation", toks: t, env: p.env}}
			}},
	}}
	return p
}

func (p *artStationParser) Site() string      { return "artstation" }
func (p *artStationParser) Domains() []string { return []string{"artstation.com"} }

func (p *artStationParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *artStationParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &ArtStationArtistURL{base: base{site: "artstation", toks: t, env: p.env}, Username: v["user"]}
}

// ArtStationOldPostURL is the legacy /artwork/:slug permalink. It redirects
// to the artist-scoped project page and normalizes to itself: the slug is
// the only stable information it carries.
type ArtStationOldPostURL struct {
	base
	Slug string

	target memo[Source]
}

func (u *ArtStationOldPostURL) String() string {
	return u.norm.get(func() string { return "https://www.artstation.com/artwork/" + u.Slug })
}

func (u *ArtStationOldPostURL) Resolved(ctx context.Context) (Source, error) {
	return u.target.do(func() (Source, error) {
		// The project JSON names the permalink including the owning user's
		// portfolio host, which beats chasing HTTP redirects through the
		// interstitial page.
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			Permalink string `json:"permalink"`
		}
		url := fmt.Sprintf("https://www.artstation.com/projects/%s.json", u.Slug)
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			return nil, err
		}
		if resp.Permalink == "" {
			return nil, fmt.Errorf("artstation project %s has no permalink", u.Slug)
		}
		return u.env.resolve(resp.Permalink)
	})
}

// ArtStationPostURL addresses a project on the owning artist's portfolio
// host.
type ArtStationPostURL struct {
	base
	Username string
	PostID   string

	detail memo[*artStationProject]
}

// NewArtStationPostURL builds the post URL directly from known fields.
func NewArtStationPostURL(env *Env, username, postID string) *ArtStationPostURL {
	return &ArtStationPostURL{base: base{site: "artstation", env: env}, Username: username, PostID: postID}
}

func (u *ArtStationPostURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://%s.artstation.com/projects/%s", u.Username, u.PostID)
	})
}

type artStationProject struct {
	CreatedAt string `json:"created_at"`
	LikesCount int   `json:"likes_count"`
	Assets    []struct {
		ImageURL string `json:"image_url"`
	} `json:"assets"`
}

func (u *ArtStationPostURL) fetchDetail(ctx context.Context) (*artStationProject, error) {
	return u.detail.do(func() (*artStationProject, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var proj artStationProject
		url := fmt.Sprintf("https://www.artstation.com/projects/%s.json", u.PostID)
		if err := f.FetchJSON(ctx, url, &proj); err != nil {
			return nil, err
		}
		return &proj, nil
	})
}

func (u *ArtStationPostURL) Gallery(ctx context.Context) (Gallery, error) {
	return &ArtStationArtistURL{base: base{site: "artstation", env: u.env}, Username: u.Username}, nil
}

func (u *ArtStationPostURL) Assets(ctx context.Context) ([]Source, error) {
	proj, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	var raws []string
	for _, a := range proj.Assets {
		raws = append(raws, a.ImageURL)
	}
	return relatedFrom(u.env, raws)
}

func (u *ArtStationPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	proj, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, proj.CreatedAt)
}

func (u *ArtStationPostURL) Score(ctx context.Context) (int, error) {
	proj, err := u.fetchDetail(ctx)
	if err != nil {
		return 0, err
	}
	return proj.LikesCount, nil
}

// ArtStationArtistURL addresses a portfolio.
type ArtStationArtistURL struct {
	base
	Username string

	prof  memo[*profile]
	posts memo[[]Source]
}

// NewArtStationArtistURL builds the artist URL directly from a username.
func NewArtStationArtistURL(env *Env, username string) *ArtStationArtistURL {
	return &ArtStationArtistURL{base: base{site: "artstation", env: env}, Username: username}
}

func (u *ArtStationArtistURL) String() string {
	return u.norm.get(func() string { return "https://www.artstation.com/" + u.Username })
}

func (u *ArtStationArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
	return u.prof.do(func() (*profile, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			FullName string `json:"full_name"`
			Username string `json:"username"`
			SocialProfiles []struct {
				URL string `json:"url"`
			} `json:"social_profiles"`
		}
		url := fmt.Sprintf("https://www.artstation.com/users/%s.json", u.Username)
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			if isNotFoundErr(err) {
				return &profile{Deleted: true}, nil
			}
			return nil, err
		}

		var raws []string
		for _, sp := range resp.SocialProfiles {
			raws = append(raws, sp.URL)
		}
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}

		p := &profile{Related: related}
		if resp.FullName != "" {
			p.Primary = []string{resp.FullName}
		}
		if resp.Username != "" {
			p.Secondary = []string{resp.Username}
		}
		return p, nil
	})
}

func (u *ArtStationArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *ArtStationArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *ArtStationArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *ArtStationArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func (u *ArtStationArtistURL) Posts(ctx context.Context) ([]Source, error) {
	return u.posts.do(func() ([]Source, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			Data []struct {
				Permalink string `json:"permalink"`
			} `json:"data"`
		}
		url := fmt.Sprintf("https://www.artstation.com/users/%s/projects.json", u.Username)
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			return nil, err
		}
		var raws []string
		for _, d := range resp.Data {
			raws = append(raws, d.Permalink)
		}
		return relatedFrom(u.env, raws)
	})
}

// ArtStationImageURL addresses an asset on the cdn hosts. Like other CDN
// content it normalizes to its raw form; the asset path encodes internal
// ids that cannot be rebuilt from the page-level ids.
type ArtStationImageURL struct {
	base
}

func (u *ArtStationImageURL) String() string {
	return u.norm.get(func() string { return u.toks.Raw })
}

func (u *ArtStationImageURL) Files(ctx context.Context) ([]File, error) {
	return singleFile(ctx, u.env, u)
}
