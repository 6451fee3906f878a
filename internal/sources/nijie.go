package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// nijieParser covers nijie.info and its pic.nijie.net image host. The site
// still addresses everything through query parameters.
//
//	https://nijie.info/view.php?id=218856
//	https://nijie.info/view_popup.php?id=218856
//	https://nijie.info/members.php?id=236014
//	https://nijie.info/members_illust.php?id=236014
//	https://pic.nijie.net/01/nijie_picture/236014_20170620101426_0.png
//	https://pic01.nijie.info/nijie_picture/diff/main/218856_0_236014_20170620101329.png
type nijieParser struct {
	env    *Env
	routes routeTable
}

func newNijieParser(env *Env) *nijieParser {
	p := &nijieParser{env: env}
	p.routes = routeTable{routes: []route{
		{subdomain: "www|sp|", path: "/view.php", query: map[string]string{"id": ":id"},
			guard: Digits("id"), build: p.post},
		{subdomain: "www|sp|", path: "/view_popup.php", query: map[string]string{"id": ":id"},
			guard: Digits("id"), build: p.post},
		{subdomain: "www|sp|", path: "/members.php", query: map[string]string{"id": ":id"},
			guard: Digits("id"), build: p.artist},
		{subdomain: "www|sp|", path: "/members_illust.php", query: map[string]string{"id": ":id"},
			guard: Digits("id"), build: p.artist},
		// Image hosts. Filenames carry the interesting ids; shapes that
		// match none of the known conventions are avatars and banners.
		{subdomain: "*", path: "*rest",
			guard: func(v Vars, t *urlkit.Tokens) bool { return isNijiePictureHost(t) && nijieFileInfo(t) != nil },
			build: func(v Vars, t *urlkit.Tokens) Source {
				info := nijieFileInfo(t)
				return &NijieImageURL{base: base{site: "nijie", toks: t, env: p.env},
					PostID: info.postID, ArtistID: info.artistID, Page: info.page}
			}},
		{subdomain: "*", path: "*rest",
			guard:       func(v Vars, t *urlkit.Tokens) bool { return isNijiePictureHost(t) },
			unsupported: true},
		// Login-walled and informational pages.
		{subdomain: "www|sp|", path: "/login.php", unsupported: true},
		{subdomain: "www|sp|", path: "", unsupported: true},
	}}
	return p
}

func (p *nijieParser) Site() string      { return "nijie" }
func (p *nijieParser) Domains() []string { return []string{"nijie.info", "nijie.net"} }

func (p *nijieParser) Parse(t *urlkit.Tokens) (Source, error) {
	return p.routes.match(t)
}

func (p *nijieParser) post(v Vars, t *urlkit.Tokens) Source {
	return &NijiePostURL{base: base{site: "nijie", toks: t, env: p.env}, PostID: v.Int("id")}
}

func (p *nijieParser) artist(v Vars, t *urlkit.Tokens) Source {
	return &NijieArtistURL{base: base{site: "nijie", toks: t, env: p.env}, UserID: v.Int("id")}
}

func isNijiePictureHost(t *urlkit.Tokens) bool {
	if t.Domain == "nijie.net" {
		return true
	}
	return strings.HasPrefix(t.Subdomain, "pic")
}

type nijieFile struct {
	postID   int
	artistID int
	page     int
}

// nijieFileInfo decodes the image filename conventions. These are literal
// patterns lifted from the observed corpus, not a documented format:
//
//	236014_20170620101426_0.png          {artist}_{datestamp14}_{page}
//	236014_20170620101426.png            {artist}_{datestamp14}
//	218856_0_236014_20170620101329.png   {post}_{page}_{artist}_{datestamp14}
//
// The position of the 14-digit datestamp disambiguates which convention a
// name follows.
func nijieFileInfo(t *urlkit.Tokens) *nijieFile {
	if len(t.Segments) == 0 {
		return nil
	}
	name := t.Segments[len(t.Segments)-1]
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	parts := strings.Split(name, "_")

	isDatestamp := func(s string) bool { return len(s) == 14 && isDigits(s) }

	switch {
	case len(parts) >= 4 && isDigits(parts[0]) && isDigits(parts[1]) && isDigits(parts[2]) && isDatestamp(parts[3]):
		return &nijieFile{postID: mustAtoi(parts[0]), page: mustAtoi(parts[1]), artistID: mustAtoi(parts[2])}
	case len(parts) >= 3 && isDigits(parts[0]) && isDatestamp(parts[1]) && isDigits(parts[2]):
		return &nijieFile{artistID: mustAtoi(parts[0]), page: mustAtoi(parts[2])}
	case len(parts) >= 2 && isDigits(parts[0]) && isDatestamp(parts[1]):
		return &nijieFile{artistID: mustAtoi(parts[0])}
	}
	return nil
}

// NijiePostURL addresses one illustration.
type NijiePostURL struct {
	base
	PostID int
}

func (u *NijiePostURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://nijie.info/view.php?id=%d", u.PostID) })
}

func (u *NijiePostURL) Gallery(ctx context.Context) (Gallery, error) {
	f, err := u.env.fetcher()
	if err != nil {
		return nil, err
	}
	doc, err := f.FetchHTML(ctx, u.String())
	if err != nil {
		return nil, err
	}
	href, ok := doc.Find(`a[href*="members.php?id="]`).First().Attr("href")
	if !ok {
		return nil, fmt.Errorf("nijie post %d page exposes no member link", u.PostID)
	}
	src, err := u.env.resolve(absoluteNijieURL(href))
	if err != nil {
		return nil, err
	}
	gallery, ok := src.(Gallery)
	if !ok {
		return nil, fmt.Errorf("nijie member link %q did not parse as a gallery", href)
	}
	return gallery, nil
}

func (u *NijiePostURL) Assets(ctx context.Context) ([]Source, error) {
	f, err := u.env.fetcher()
	if err != nil {
		return nil, err
	}
	doc, err := f.FetchHTML(ctx, u.String())
	if err != nil {
		return nil, err
	}
	var raws []string
	doc.Find("#gallery img, #img_filter img").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			raws = append(raws, absoluteNijieURL(src))
		}
	})
	return relatedFrom(u.env, raws)
}

func (u *NijiePostURL) CreatedAt(ctx context.Context) (time.Time, error) {
	return time.Time{}, fmt.Errorf("nijie exposes no machine-readable post timestamp")
}

func (u *NijiePostURL) Score(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("nijie exposes no machine-readable post score")
}

// NijieArtistURL addresses a member page; the members_illust listing makes
// it a gallery as well.
type NijieArtistURL struct {
	base
	UserID int

	prof  memo[*profile]
	posts memo[[]Source]
}

// NewNijieArtistURL builds the member URL directly from a numeric id.
func NewNijieArtistURL(env *Env, userID int) *NijieArtistURL {
	return &NijieArtistURL{base: base{site: "nijie", env: env}, UserID: userID}
}

func (u *NijieArtistURL) String() string {
	return u.norm.get(func() string { return fmt.Sprintf("https://nijie.info/members.php?id=%d", u.UserID) })
}

func (u *NijieArtistURL) fetchProfile(ctx context.Context) (*profile, error) {
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
		// Deleted members return 200 with a localized notice.
		if strings.Contains(doc.Text(), "このIDは存在しません") {
			return &profile{Deleted: true}, nil
		}

		p := &profile{}
		if name := strings.TrimSpace(doc.Find("#pro .name, p.user_icon + p").First().Text()); name != "" {
			p.Primary = []string{name}
		}
		related, err := relatedFrom(u.env, scrapeExternalLinks(doc, "nijie.info"))
		if err != nil {
			return nil, err
		}
		p.Related = related
		return p, nil
	})
}

func (u *NijieArtistURL) PrimaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Primary, nil
}

func (u *NijieArtistURL) SecondaryNames(ctx context.Context) ([]string, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Secondary, nil
}

func (u *NijieArtistURL) Related(ctx context.Context) ([]Source, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return nil, err
	}
	return p.Related, nil
}

func (u *NijieArtistURL) IsDeleted(ctx context.Context) (bool, error) {
	p, err := u.fetchProfile(ctx)
	if err != nil {
		return false, err
	}
	return p.Deleted, nil
}

func (u *NijieArtistURL) Posts(ctx context.Context) ([]Source, error) {
	return u.posts.do(func() ([]Source, error) {
		f, err := u.env.fetcher()
		if err != nil {
			return nil, err
		}
		url := fmt.Sprintf("https://nijie.info/members_illust.php?id=%d", u.UserID)
		doc, err := f.FetchHTML(ctx, url)
		if err != nil {
			return nil, err
		}
		var raws []string
		doc.Find(`a[href*="view.php?id="]`).Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				raws = append(raws, absoluteNijieURL(href))
			}
		})
		return relatedFrom(u.env, raws)
	})
}

func absoluteNijieURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "/") {
		return "https://nijie.info" + href
	}
	return href
}

// NijieImageURL addresses a file on the picture hosts. Depending on the
// filename convention it may know its post id, its artist id, or both.
type NijieImageURL struct {
	base
	PostID   int
	ArtistID int
	Page     int
}

func (u *NijieImageURL) String() string {
	return u.norm.get(func() string { return u.toks.Raw })
}

func (u *NijieImageURL) Files(ctx context.Context) ([]File, error) {
	return singleFile(ctx, u.env, u)
}
