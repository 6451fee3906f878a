package sources

import (
	"testing"

	"github.com/ayane-dev/musubi/internal/errors"
)

func newTestResolver() *Resolver {
	env := &Env{}
	registry := MustRegistry(DefaultParsers(env)...)
	r := NewResolver(registry, env)
	env.Resolve = r.Parse
	return r
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		// pixiv: every historical post spelling collapses to /artworks.
		{"https://www.pixiv.net/artworks/46324488", "https://www.pixiv.net/artworks/46324488"},
		{"https://www.pixiv.net/en/artworks/46324488", "https://www.pixiv.net/artworks/46324488"},
		{"https://www.pixiv.net/i/46324488", "https://www.pixiv.net/artworks/46324488"},
		{"https://www.pixiv.net/member_illust.php?mode=medium&illust_id=46324488", "https://www.pixiv.net/artworks/46324488"},
		{"https://touch.pixiv.net/member_illust.php?mode=medium&illust_id=46324488", "https://www.pixiv.net/artworks/46324488"},
		{"https://www.pixiv.net/u/9948", "https://www.pixiv.net/users/9948"},
		{"https://www.pixiv.net/member.php?id=9948", "https://www.pixiv.net/users/9948"},
		{"https://www.pixiv.net/en/users/9948/artworks", "https://www.pixiv.net/users/9948"},
		{"https://www.pixiv.net/stacc/noizave", "https://www.pixiv.net/stacc/noizave"},
		{"https://pixiv.me/noizave", "https://pixiv.me/noizave"},
		// CDN images keep their raw spelling; the path encodes a timestamp
		// that cannot be rebuilt from the ids.
		{
			"https://i.pximg.net/img-original/img/2014/10/03/18/10/20/46324488_p0.png",
			"https://i.pximg.net/img-original/img/2014/10/03/18/10/20/46324488_p0.png",
		},

		// twitter
		{"https://twitter.com/noizave", "https://twitter.com/noizave"},
		{"https://x.com/noizave", "https://twitter.com/noizave"},
		{"https://mobile.twitter.com/noizave/media", "https://twitter.com/noizave"},
		{"https://twitter.com/noizave/status/875768175136317440", "https://twitter.com/noizave/status/875768175136317440"},
		{"https://twitter.com/i/web/status/875768175136317440", "https://twitter.com/i/web/status/875768175136317440"},
		{"https://twitter.com/intent/user?user_id=1485229827984531457", "https://twitter.com/intent/user?user_id=1485229827984531457"},
		{"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ.jpg", "https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ?format=jpg&name=orig"},
		{"https://t.co/Dxn7CuVErW", "https://t.co/Dxn7CuVErW"},

		// artstation
		{"https://www.artstation.com/artwork/cody-from-sf", "https://www.artstation.com/artwork/cody-from-sf"},
		{"https://sa-dui.artstation.com/projects/DVERn", "https://sa-dui.artstation.com/projects/DVERn"},
		{"https://www.artstation.com/sa-dui", "https://www.artstation.com/sa-dui"},
		{"https://artstation.com/sa-dui", "https://www.artstation.com/sa-dui"},
		{"https://www.artstation.com/artist/sa-dui", "https://www.artstation.com/sa-dui"},
		{"https://sa-dui.artstation.com", "https://www.artstation.com/sa-dui"},

		// booth: locale prefixes are presentation only.
		{"https://booth.pm/en/items/2864768", "https://booth.pm/items/2864768"},
		{"https://booth.pm/ja/items/2864768", "https://booth.pm/items/2864768"},
		{"https://re-face.booth.pm/items/3435711", "https://re-face.booth.pm/items/3435711"},
		{"http://re-face.booth.pm/", "https://re-face.booth.pm"},
		{"https://re-face.booth.pm/items", "https://re-face.booth.pm"},

		// deviantart
		{
			"https://www.deviantart.com/noizave/art/test-post-please-ignore-685436408",
			"https://www.deviantart.com/noizave/art/test-post-please-ignore-685436408",
		},
		{
			"https://noizave.deviantart.com/art/test-post-please-ignore-685436408",
			"https://www.deviantart.com/noizave/art/test-post-please-ignore-685436408",
		},
		{"https://www.deviantart.com/deviation/685436408", "https://www.deviantart.com/deviation/685436408"},
		{"https://noizave.deviantart.com", "https://www.deviantart.com/noizave"},
		{"https://www.deviantart.com/NoizaVe", "https://www.deviantart.com/noizave"},
		{"https://fav.me/dbc3a48", "https://fav.me/dbc3a48"},

		// fanbox: the www/@ spelling collapses to the subdomain form.
		{"https://omu001.fanbox.cc/posts/39714", "https://omu001.fanbox.cc/posts/39714"},
		{"https://www.fanbox.cc/@omu001/posts/39714", "https://omu001.fanbox.cc/posts/39714"},
		{"https://www.fanbox.cc/@omu001", "https://omu001.fanbox.cc"},
		{"https://omu001.fanbox.cc/posts", "https://omu001.fanbox.cc"},
		{"https://www.pixiv.net/fanbox/creator/310631", "https://www.pixiv.net/fanbox/creator/310631"},

		// nijie: view_popup and the sp host are spellings of view.php.
		{"https://nijie.info/view.php?id=218856", "https://nijie.info/view.php?id=218856"},
		{"https://nijie.info/view_popup.php?id=218856", "https://nijie.info/view.php?id=218856"},
		{"https://sp.nijie.info/view.php?id=218856", "https://nijie.info/view.php?id=218856"},
		{"https://www.nijie.info/members.php?id=161703", "https://nijie.info/members.php?id=161703"},
		{"https://nijie.info/members_illust.php?id=161703", "https://nijie.info/members.php?id=161703"},

		// fantia
		{"https://fantia.jp/posts/1148334", "https://fantia.jp/posts/1148334"},
		{"https://fantia.jp/fanclubs/64496", "https://fantia.jp/fanclubs/64496"},
		{"https://fantia.jp/fanclubs/64496/posts", "https://fantia.jp/fanclubs/64496"},
		{"https://fantia.jp/products/249638", "https://fantia.jp/products/249638"},

		// skeb
		{"https://skeb.jp/@kai_chiisame", "https://skeb.jp/@kai_chiisame"},
		{"https://skeb.jp/@kai_chiisame/works/6", "https://skeb.jp/@kai_chiisame/works/6"},

		// tumblr: slugs are dropped, blog-form and www-form converge.
		{"https://noizave.tumblr.com", "https://noizave.tumblr.com"},
		{"https://www.tumblr.com/blog/noizave", "https://noizave.tumblr.com"},
		{"https://www.tumblr.com/noizave", "https://noizave.tumblr.com"},
		{"https://noizave.tumblr.com/post/162206271767", "https://noizave.tumblr.com/post/162206271767"},
		{"https://noizave.tumblr.com/post/162206271767/some-long-slug", "https://noizave.tumblr.com/post/162206271767"},
		{"https://www.tumblr.com/noizave/162206271767/slug", "https://noizave.tumblr.com/post/162206271767"},

		// unknown domains pass through with trailing-slash trim only.
		{"https://www.example.com/profile/", "https://www.example.com/profile"},
	}

	r := newTestResolver()
	for _, tt := range tests {
		got, err := r.Normalize(tt.raw)
		if err != nil {
			t.Errorf("Normalize(%q) failed: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestParseUnknownDomain(t *testing.T) {
	r := newTestResolver()
	src, err := r.Parse("https://www.example.com/some/page")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := src.(*UnknownSource); !ok {
		t.Fatalf("Parse returned %T, want *UnknownSource", src)
	}
	if src.Site() != "unknown" {
		t.Errorf("Site() = %q, want unknown", src.Site())
	}
}

func TestParseMalformed(t *testing.T) {
	r := newTestResolver()
	for _, raw := range []string{"", "ftp://pixiv.net/x", "https://", "www.pixiv.net/artworks/1"} {
		src, err := r.Parse(raw)
		if err == nil {
			t.Errorf("Parse(%q) = %T, want malformed error", raw, src)
			continue
		}
		var malformed *errors.MalformedURLError
		if !errors.As(err, &malformed) {
			t.Errorf("Parse(%q) error = %v, want MalformedURLError", raw, err)
		}
	}
}

func TestParseUnsupportedShape(t *testing.T) {
	r := newTestResolver()
	tests := []string{
		"https://www.pixiv.net/novel/show.php?id=12345",
		"https://sketch.pixiv.net/items/5835314698645024323",
		"https://booth.pm/",
		"https://twitter.com/hashtag/nijie",
		"https://skeb.jp/works",
		"https://va.media.tumblr.com/tumblr_pgohk0TjhS1u7mrsl.mp4",
	}
	for _, raw := range tests {
		_, err := r.Parse(raw)
		if !errors.Is(err, errors.ErrUnsupportedShape) {
			t.Errorf("Parse(%q) error = %v, want ErrUnsupportedShape", raw, err)
		}
	}
}

func TestParseMemoized(t *testing.T) {
	r := newTestResolver()
	a, err := r.Parse("https://www.pixiv.net/artworks/46324488")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	b, _ := r.Parse("https://www.pixiv.net/artworks/46324488")
	if a != b {
		t.Error("expected identical Source for identical input")
	}
}

func TestCoerce(t *testing.T) {
	r := newTestResolver()
	src, err := r.Parse("https://www.pixiv.net/artworks/46324488")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	same, err := r.Coerce(src)
	if err != nil {
		t.Fatalf("Coerce(Source) failed: %v", err)
	}
	if same != src {
		t.Error("Coerce should return typed input unchanged")
	}
	if _, err := r.Coerce(42); err == nil {
		t.Error("Coerce(int) should fail")
	}
	parsed, err := r.Coerce("https://www.pixiv.net/artworks/46324488")
	if err != nil {
		t.Fatalf("Coerce(string) failed: %v", err)
	}
	if parsed != src {
		t.Error("Coerce(string) should hit the parse memo")
	}
}

type captureObserver struct {
	sites    []string
	outcomes []string
}

func (o *captureObserver) ObserveParse(site, outcome string) {
	o.sites = append(o.sites, site)
	o.outcomes = append(o.outcomes, outcome)
}

func TestParseObserverOutcomes(t *testing.T) {
	r := newTestResolver()
	obs := &captureObserver{}
	r.SetObserver(obs)

	inputs := []string{
		"https://www.pixiv.net/artworks/46324488", // ok
		"https://www.example.com/page",            // unknown_domain
		"https://booth.pm/",                       // unsupported_shape
		"not-a-url",                               // malformed
	}
	for _, raw := range inputs {
		r.Parse(raw)
	}

	want := []string{"ok", "unknown_domain", "unsupported_shape", "malformed"}
	if len(obs.outcomes) != len(want) {
		t.Fatalf("observed %d outcomes, want %d: %v", len(obs.outcomes), len(want), obs.outcomes)
	}
	for i, outcome := range want {
		if obs.outcomes[i] != outcome {
			t.Errorf("outcome[%d] = %q, want %q", i, obs.outcomes[i], outcome)
		}
	}
	if obs.sites[0] != "pixiv" {
		t.Errorf("site[0] = %q, want pixiv", obs.sites[0])
	}
}

func TestRegistryRejectsDuplicateDomains(t *testing.T) {
	env := &Env{}
	_, err := NewRegistry(newPixivParser(env), newPixivParser(env))
	var dup *errors.DuplicateDomainError
	if !errors.As(err, &dup) {
		t.Fatalf("NewRegistry error = %v, want DuplicateDomainError", err)
	}
	if dup.Domain == "" {
		t.Error("DuplicateDomainError should name the contested domain")
	}
}
