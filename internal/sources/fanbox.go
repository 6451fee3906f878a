package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// fanboxParser covers fanbox.cc. Creators live on per-creator subdomains
// with an equivalent `www.fanbox.cc/@creator` spelling; the legacy numeric
// `pixiv.net/fanbox/creator/:id` form (routed here by the pixiv parser) is a
// redirect keyed by pixiv user id.
//
//	https://omu001.fanbox.cc
//	https://omu001.fanbox.cc/posts/39714
//	https://www.fanbox.cc/@omu001/posts/39714
//	https://www.pixiv.net/fanbox/creator/310631
type fanboxParser struct {
	env    *Env
	routes routeTable
}

func newFanboxParser(env *Env) *fanboxParser {
	p := &fanboxParser{env: env}
	atName := func(v Vars, _ *urlkit.Tokens) bool { return strings.HasPrefix(v["at"], "@") }

	p.routes = routeTable{routes: []route{
		{subdomain: "www|", path: "/:at/posts/:id",
			guard: func(v Vars, t *urlkit.Tokens) bool { return atName(v, t) && isDigits(v["id"]) },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return p.post(t, strings.TrimPrefix(v["at"], "@"), v.Int("id"))
			}},
		{subdomain: "www|", path: "/:at", guard: atName,
			build: func(v Vars, t *urlkit.Tokens) Source {
				return p.artist(t, strings.TrimPrefix(v["at"], "@"))
			}},
		{subdomain: ":creator", path: "/posts/:id", guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source { return p.post(t, v["creator"], v.Int("id")) }},
		{subdomain: ":creator", path: "/posts",
			build: func(v Vars, t *urlkit.Tokens) Source { return p.artist(t, v["creator"]) }},
		{subdomain: ":creator", path: "",
			build: func(v Vars, t *urlkit.Tokens) Source { return p.artist(t, v["creator"]) }},
	}}
	return p
}

func (p *fanboxParser) Site() string      { return "fanbox" }
func (p *fanboxParser) Domains() []string { return []string{"fanbox.cc"} }

func (p *fanboxParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *fanboxParser) post(t *urlkit.Tokens, creator string, id int) Source {
	return &FanboxPostURL{base: base{site: "fanbox", toks: t, env: p.env}, Creator: creator, PostID: id}
}

func (p *fanboxParser) artist(t *urlkit.Tokens, creator string) Source {
	return &FanboxArtistURL{base: base{site: "fanbox", toks: t, env: p.env}, Creator: creator}
}

// FanboxPostURL addresses one paid post.
type FanboxPostURL struct {
	base
	Creator string
	PostID  int

	detail memo[*fanboxPost]
}

func (u *FanboxPostURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://%s.fanbox.cc/posts/%d", u.Creator, u.PostID)
	})
}

type fanboxPost struct {
	Body struct {
		PublishedDatetime string `json:"publishedDatetime"`
		LikeCount         int    `json:"likeCount"`
		CoverImageURL     string `json:"coverImageUrl"`
	} `json:"body"`
}

func (u *FanboxPostURL) fetchDetail(ctx context.Context) (*fanboxPost, error) {
	return u.detail.do(func() (*fanboxPost, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var post fanboxPost
		url := fmt.Sprintf("https://api.fanbox.cc/post.info?postId=%d", u.PostID)
		if err := f.FetchJSON(ctx, url, &post); err != nil {
			return nil, err
		}
		return &post, nil
	})
}

func (u *FanboxPostURL) Gallery(ctx context.Context) (Gallery, error) {
	return &FanboxArtistURL{base: base{site: "fanbox", env: u.env}, Creator: u.Creator}, nil
}

func (u *FanboxPostURL) Assets(ctx context.Context) ([]Source, error) {
	post, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	if post.Body.CoverImageURL == "" {
		return nil, nil
	}
	return relatedFrom(u.env, []string{post.Body.CoverImageURL})
}

func (u *FanboxPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	post, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, post.Body.PublishedDatetime)
}

func (u *FanboxPostURL) Score(ctx context.Context) (int, error) {
	post, err := u.fetchDetail(ctx)
	if err != nil {
		return 0, err
	}
	return post.Body.LikeCount, nil
}

// FanboxArtistURL addresses a creator page.
type FanboxArtistURL struct {
	base
	Creator string

	prof memo[*profile]
}

// NewFanboxArtistURL builds the creator URL directly from a creator id.
func NewFanboxArtistURL(env *Env, creator string) *FanboxArtistURL {
	return &FanboxArtistURL{base: base{site: "fanbox", env: env}, Creator: creator}
}

func (u *FanboxArtistURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://%s.fanbox.cc", u.Creator) })
}

func (u *FanboxArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
	return u.prof.do(func() (*profile, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			Body struct {
				User struct {
					Name   string `json:"name"`
					UserID string `json:"userId"`
				} `json:"user"`
				ProfileLinks []string `json:"profileLinks"`
			} `json:"body"`
		}
		url := "https://api.fanbox.cc/creator.get?creatorId=" + u.Creator
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			if isNotFoundErr(err) {
				return &profile{Deleted: true}, nil
			}
			return nil, err
		}

		raws := resp.Body.ProfileLinks
		if resp.Body.User.UserID != "" && isDigits(resp.Body.User.UserID) {
			raws = append(raws, "https://www.pixiv.net/users/"+resp.Body.User.UserID)
		}
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}

		p := &profile{Secondary: []string{u.Creator}, Related: related}
		if resp.Body.User.Name != "" {
			p.Primary = []string{resp.Body.User.Name}
		}
		return p, nil
	})
}

func (u *FanboxArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *FanboxArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *FanboxArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *FanboxArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

// FanboxCreatorURL is the legacy numeric form keyed by pixiv user id; it
// redirects to the current creator-id host.
type FanboxCreatorURL struct {
	base
	CreatorID int

	target memo[Source]
}

func (u *FanboxCreatorURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://www.pixiv.net/fanbox/creator/%d", u.CreatorID)
	})
}

func (u *FanboxCreatorURL) Resolved(ctx context.Context) (Source, error) {
	return u.target.do(func() (Source, error) {
		return resolveRedirect(ctx, u.env, u)
	})
}
