package sources

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// pixivParser covers pixiv.net, the pximg.net image CDN and the pixiv.me
// short-link service.
//
// Observed shapes, new first:
//
//	https://www.pixiv.net/artworks/46324488
//	https://www.pixiv.net/en/artworks/46324488
//	https://www.pixiv.net/member_illust.php?mode=medium&illust_id=46324488
//	https://www.pixiv.net/i/46324488
//	https://www.pixiv.net/users/9948
//	https://www.pixiv.net/en/users/9948/artworks
//	https://www.pixiv.net/member.php?id=9948
//	https://www.pixiv.net/u/9948
//	https://www.pixiv.net/stacc/noizave
//	https://www.pixiv.net/fanbox/creator/310631
//	https://i.pximg.net/img-original/img/2014/10/03/18/10/20/46324488_p0.png
//	https://i.pximg.net/c/250x250_80_a2/img-master/img/2014/10/03/18/10/20/46324488_p0_square1200.jpg
//	https://pixiv.me/noizave
type pixivParser struct {
	env    *Env
	routes routeTable
}

func newPixivParser(env *Env) *pixivParser {
	p := &pixivParser{env: env}
	p.routes = routeTable{routes: []route{
		{subdomain: "www|touch|", path: "/artworks/:id", guard: Digits("id"),
			build: p.post},
		{subdomain: "www|touch|", path: "/:lang/artworks/:id",
			guard: func(v Vars, t *urlkit.Tokens) bool { return isLangCode(v["lang"]) && isDigits(v["id"]) },
			build: p.post},
		{subdomain: "www|touch|", path: "/i/:id", guard: Digits("id"), build: p.post},
		{subdomain: "www|touch|", path: "/member_illust.php", query: map[string]string{"illust_id": ":id"},
			guard: Digits("id"), build: p.post},
		{subdomain: "www|touch|", path: "/users/:id/*rest", guard: Digits("id"), build: p.artist},
		{subdomain: "www|touch|", path: "/:lang/users/:id/*rest",
			guard: func(v Vars, t *urlkit.Tokens) bool { return isLangCode(v["lang"]) && isDigits(v["id"]) },
			build: p.artist},
		{subdomain: "www|touch|", path: "/u/:id", guard: Digits("id"), build: p.artist},
		{subdomain: "www|touch|", path: "/member.php", query: map[string]string{"id": ":id"},
			guard: Digits("id"), build: p.artist},
		{subdomain: "www|touch|", path: "/stacc/:name", build: p.stacc},
		{subdomain: "www|touch|", path: "/fanbox/creator/:id", guard: Digits("id"),
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &FanboxCreatorURL{base: base{site: "fanbox", toks: t, env: p.env}, CreatorID: v.Int("id")}
			}},
		// pixiv Sketch and the novel side are known shapes we do not model.
		{subdomain: "sketch", path: "*rest", unsupported: true},
		{subdomain: "www|touch|", path: "/novel/*rest", unsupported: true},
		// CDN images; anything under pximg that is not a post image (user
		// avatars, background banners) is deliberately skipped.
		{subdomain: "*", path: "*rest",
			guard: func(v Vars, t *urlkit.Tokens) bool {
				return t.Domain == "pximg.net" && pixivImageInfo(t) != nil
			},
			build: p.image},
		{subdomain: "*", path: "*rest",
			guard:       func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "pximg.net" },
			unsupported: true},
		// pixiv.me short links redirect to the user profile.
		{subdomain: "", path: "/:name",
			guard: func(v Vars, t *urlkit.Tokens) bool { return t.Domain == "pixiv.me" },
			build: func(v Vars, t *urlkit.Tokens) Source {
				return &PixivMeURL{base: base{site: "pixiv", toks: t, env: p.env}, Username: v["name"]}
			}},
	}}
	return p
}

func (p *pixivParser) Site() string      { return "pixiv" }
func (p *pixivParser) Domains() []string { return []string{"pixiv.net", "pximg.net", "pixiv.me"} }

func (p *pixivParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *pixivParser) post(v Vars, t *urlkit.Tokens) Source {
	return &PixivPostURL{base: base{site: "pixiv", toks: t, env: p.env}, PostID: v.Int("id")}
}

func (p *pixivParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &PixivArtistURL{base: base{site: "pixiv", toks: t, env: p.env}, UserID: v.Int("id")}
}

func (p *pixivParser) stacc(v Vars, t *urlkit.Tokens) Source {
	return &PixivStaccURL{base: base{site: "pixiv", toks: t, env: p.env}, Username: v["name"]}
}

func (p *pixivParser) image(v Vars, t *urlkit.Tokens) Source {
	info := pixivImageInfo(t)
	return &PixivImageURL{
		base:   base{site: "pixiv", toks: t, env: p.env},
		PostID: info.postID,
		Page:   info.page,
	}
}

func isLangCode(s string) bool {
	switch s {
	case "en", "ja", "zh", "zh_tw", "ko":
		return true
	}
	return false
}

type pximgInfo struct {
	postID int
	page   int
}

// pixivImageInfo parses post id and page out of a pximg filename, e.g.
// 46324488_p0.png or 46324488_p0_master1200.jpg or 46324488_ugoira0.zip.
func pixivImageInfo(t *urlkit.Tokens) *pximgInfo {
	if len(t.Segments) == 0 {
		return nil
	}
	name := t.Segments[len(t.Segments)-1]
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	parts := strings.Split(name, "_")
	if !isDigits(parts[0]) {
		return nil
	}
	info := &pximgInfo{postID: mustAtoi(parts[0])}
	if len(parts) > 1 {
		tail := parts[1]
		switch {
		case strings.HasPrefix(tail, "p") && isDigits(tail[1:]):
			info.page = mustAtoi(tail[1:])
		case strings.HasPrefix(tail, "ugoira"):
			info.page = 0
		default:
			return nil
		}
	}
	return info
}

func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// PixivPostURL addresses a single illustration or manga post.
type PixivPostURL struct {
	base
	PostID int

	detail memo[*pixivIllustBody]
}

// NewPixivPostURL builds the post URL directly from a known id.
func NewPixivPostURL(env *Env, postID int) *PixivPostURL {
	return &PixivPostURL{base: base{site: "pixiv", env: env}, PostID: postID}
}

func (u *PixivPostURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://www.pixiv.net/artworks/%d", u.PostID)
	})
}

type pixivIllustBody struct {
	UserID    string `json:"userId"`
	CreateDate string `json:"createDate"`
	LikeCount int    `json:"likeCount"`
	PageCount int    `json:"pageCount"`
	URLs      struct {
		Original string `json:"original"`
	} `json:"urls"`
}

func (u *PixivPostURL) fetchDetail(ctx context.Context) (*pixivIllustBody, error) {
	return u.detail.do(func() (*pixivIllustBody, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			Error bool            `json:"error"`
			Body  pixivIllustBody `json:"body"`
		}
		url := fmt.Sprintf("https://www.pixiv.net/ajax/illust/%d", u.PostID)
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			return nil, err
		}
		if resp.Error {
			return nil, fmt.Errorf("pixiv illust %d not available", u.PostID)
		}
		return &resp.Body, nil
	})
}

func (u *PixivPostURL) Gallery(ctx context.Context) (Gallery, error) {
	detail, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.Atoi(detail.UserID)
	if err != nil {
		return nil, fmt.Errorf("pixiv illust %d has non-numeric userId %q", u.PostID, detail.UserID)
	}
	return NewPixivArtistURL(u.env, userID), nil
}

func (u *PixivPostURL) Assets(ctx context.Context) ([]Source, error) {
	detail, err := u.fetchDetail(ctx)
	if err != nil {
		return nil, err
	}
	if detail.URLs.Original == "" {
		return nil, nil
	}
	var out []Source
	for page := 0; page < max(detail.PageCount, 1); page++ {
		raw := strings.Replace(detail.URLs.Original, "_p0", fmt.Sprintf("_p%d", page), 1)
		src, err := u.env.resolve(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

func (u *PixivPostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	detail, err := u.fetchDetail(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, detail.CreateDate)
}

func (u *PixivPostURL) Score(ctx context.Context) (int, error) {
	detail, err := u.fetchDetail(ctx)
	if err != nil {
		return 0, err
	}
	return detail.LikeCount, nil
}

// PixivArtistURL addresses a user profile by numeric id.
type PixivArtistURL struct {
	base
	UserID int

	prof  memo[*profile]
	posts memo[[]Source]
}

// NewPixivArtistURL builds the artist URL directly from a known id.
func NewPixivArtistURL(env *Env, userID int) *PixivArtistURL {
	return &PixivArtistURL{base: base{site: "pixiv", env: env}, UserID: userID}
}

func (u *PixivArtistURL) String() string {
	return u.norm.get(func() string {
		return fmt.Sprintf("https://www.pixiv.net/users/%d", u.UserID)
	})
}

func (u *PixivArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
	return u.prof.do(func() (*profile, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			Error       bool   `json:"error"`
			UserDetails struct {
				UserName    string `json:"user_name"`
				UserAccount string `json:"user_account"`
				UserWebpage string `json:"user_webpage"`
				Social      map[string]struct {
					URL string `json:"url"`
				} `json:"social"`
			} `json:"user_details"`
		}
		url := fmt.Sprintf("https://www.pixiv.net/touch/ajax/user/details?id=%d", u.UserID)
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			if isNotFoundErr(err) {
				return &profile{Deleted: true}, nil
			}
			return nil, err
		}
		if resp.Error {
			return &profile{Deleted: true}, nil
		}

		d := resp.UserDetails
		raws := []string{d.UserWebpage}
		for _, social := range d.Social {
			raws = append(raws, social.URL)
		}
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}
		if d.UserAccount != "" {
			stacc := &PixivStaccURL{base: base{site: "pixiv", env: u.env}, Username: d.UserAccount}
			related = append(related, stacc)
		}

		p := &profile{Related: related}
		if d.UserName != "" {
			p.Primary = []string{d.UserName}
		}
		if d.UserAccount != "" {
			p.Secondary = []string{d.UserAccount}
		}
		return p, nil
	})
}

func (u *PixivArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *PixivArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *PixivArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *PixivArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func (u *PixivArtistURL) Posts(ctx context.Context) ([]Source, error) {
	return u.posts.do(func() ([]Source, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		var resp struct {
			Error bool `json:"error"`
			Body  struct {
				Illusts map[string]any `json:"illusts"`
				Manga   map[string]any `json:"manga"`
			} `json:"body"`
		}
		url := fmt.Sprintf("https://www.pixiv.net/ajax/user/%d/profile/all", u.UserID)
		if err := f.FetchJSON(ctx, url, &resp); err != nil {
			return nil, err
		}
		if resp.Error {
			return nil, nil
		}
		var out []Source
		for _, ids := range []map[string]any{resp.Body.Illusts, resp.Body.Manga} {
			for id := range ids {
				if postID, err := strconv.Atoi(id); err == nil {
					out = append(out, NewPixivPostURL(u.env, postID))
				}
			}
		}
		return out, nil
	})
}

// PixivStaccURL addresses the "stacc" feed identity, keyed by account name
// rather than numeric id. Its page links back to the numeric profile.
type PixivStaccURL struct {
	base
	Username string

	prof memo[*profile]
}

func (u *PixivStaccURL) String() string {
	return u.norm.get(func() string {
		return "https://www.pixiv.net/stacc/" + u.Username
	})
}

func (u *PixivStaccURL) fetchProfile(ctx context.Context) (*profile, error) {
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

		var raws []string
		doc.Find(`a[href*="/users/"]`).Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				raws = append(raws, absolutePixivURL(href))
			}
		})
		related, err := relatedFrom(u.env, raws)
		if err != nil {
			return nil, err
		}
		return &profile{Secondary: []string{u.Username}, Related: related}, nil
	})
}

func (u *PixivStaccURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *PixivStaccURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *PixivStaccURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *PixivStaccURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func absolutePixivURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return "https://www.pixiv.net" + href
	}
	return href
}

// PixivImageURL addresses one page image of a post on the pximg CDN.
// Images normalize to their own raw URL; the CDN path encodes the upload
// timestamp and cannot be reconstructed from the ids alone.
type PixivImageURL struct {
	base
	PostID int
	Page   int
}

func (u *PixivImageURL) String() string {
	return u.norm.get(func() string { return u.toks.Raw })
}

func (u *PixivImageURL) Files(ctx context.Context) ([]File, error) {
	return singleFile(ctx, u.env, u)
}

// PostURL returns the post this image belongs to.
func (u *PixivImageURL) PostURL() *PixivPostURL {
	return NewPixivPostURL(u.env, u.PostID)
}

// PixivMeURL is the pixiv.me short link, a pure redirect to the profile.
type PixivMeURL struct {
	base
	Username string

	target memo[Source]
}

func (u *PixivMeURL) String() string {
	return u.norm.get(func() string { return "https://pixiv.me/" + u.Username })
}

func (u *PixivMeURL) Resolved(ctx context.Context) (Source, error) {
	return u.target.do(func() (Source, error) {
		return resolveRedirect(ctx, u.env, u)
	})
}
