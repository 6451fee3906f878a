package sources

import (
	"testing"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

func mustTokens(t *testing.T, raw string) *urlkit.Tokens {
	t.Helper()
	toks, err := urlkit.Tokenize(raw)
	if err != nil {
		t.Fatalf("Tokenize(%q) failed: %v", raw, err)
	}
	return toks
}

func TestPixivImageInfo(t *testing.T) {
	tests := []struct {
		raw    string
		postID int
		page   int
	}{
		{"https://i.pximg.net/img-original/img/2014/10/03/18/10/20/46324488_p0.png", 46324488, 0},
		{"https://i.pximg.net/c/250x250_80_a2/img-master/img/2014/10/03/18/10/20/46324488_p1_square1200.jpg", 46324488, 1},
		{"https://i.pximg.net/img-zip-ugoira/img/2016/04/09/14/25/29/56268141_ugoira1920x1080.zip", 56268141, 0},
	}
	for _, tt := range tests {
		info := pixivImageInfo(mustTokens(t, tt.raw))
		if info == nil {
			t.Errorf("pixivImageInfo(%q) = nil", tt.raw)
			continue
		}
		if info.postID != tt.postID || info.page != tt.page {
			t.Errorf("pixivImageInfo(%q) = {%d, %d}, want {%d, %d}",
				tt.raw, info.postID, info.page, tt.postID, tt.page)
		}
	}

	// Avatars and banners carry no post id.
	avatar := "https://i.pximg.net/user-profile/img/2014/12/18/10/31/23/8733472_7dc7310db6cc37163af145d04499e411_170.jpg"
	if info := pixivImageInfo(mustTokens(t, avatar)); info != nil {
		// The leading number is a user id, but the suffix doesn't follow the
		// _pN page convention.
		t.Errorf("pixivImageInfo(avatar) = %+v, want nil", info)
	}
}

func TestWixmpFileInfo(t *testing.T) {
	raw := "https://images-wixmp-ed30a86b8c4ca887773594c2.wixmp.com/f/abc/test_post_please_ignore_by_noizave_dbc3a48-pre.jpg"
	info := wixmpFileInfo(mustTokens(t, raw))
	if info == nil {
		t.Fatal("wixmpFileInfo returned nil")
	}
	if info.username != "noizave" {
		t.Errorf("username = %q, want noizave", info.username)
	}
	if info.deviationID != 685436408 {
		t.Errorf("deviationID = %d, want 685436408", info.deviationID)
	}

	siteAsset := "https://st.wixmp.com/styles/main.css"
	if info := wixmpFileInfo(mustTokens(t, siteAsset)); info != nil {
		t.Errorf("wixmpFileInfo(site asset) = %+v, want nil", info)
	}
}

func TestDeviationSlugID(t *testing.T) {
	tests := []struct {
		slug string
		want int
	}{
		{"test-post-please-ignore-685436408", 685436408},
		{"no-numeric-tail", 0},
		{"685436408", 0},
	}
	for _, tt := range tests {
		if got := deviationSlugID(tt.slug); got != tt.want {
			t.Errorf("deviationSlugID(%q) = %d, want %d", tt.slug, got, tt.want)
		}
	}
}

func TestNijieFileInfo(t *testing.T) {
	tests := []struct {
		raw      string
		postID   int
		artistID int
		page     int
	}{
		{"https://pic.nijie.net/01/nijie_picture/236014_20170620101426_0.png", 0, 236014, 0},
		{"https://pic.nijie.net/01/nijie_picture/236014_20170620101426.png", 0, 236014, 0},
		{"https://pic01.nijie.info/nijie_picture/diff/main/218856_0_236014_20170620101329.png", 218856, 236014, 0},
		{"https://pic01.nijie.info/nijie_picture/diff/main/218856_2_236014_20170620101329.png", 218856, 236014, 2},
	}
	for _, tt := range tests {
		info := nijieFileInfo(mustTokens(t, tt.raw))
		if info == nil {
			t.Errorf("nijieFileInfo(%q) = nil", tt.raw)
			continue
		}
		if info.postID != tt.postID || info.artistID != tt.artistID || info.page != tt.page {
			t.Errorf("nijieFileInfo(%q) = %+v, want {postID:%d artistID:%d page:%d}",
				tt.raw, info, tt.postID, tt.artistID, tt.page)
		}
	}

	if info := nijieFileInfo(mustTokens(t, "https://pic.nijie.net/01/nijie/avatar/main.png")); info != nil {
		t.Errorf("nijieFileInfo(avatar) = %+v, want nil", info)
	}
}

func TestTwimgKey(t *testing.T) {
	tests := []struct {
		raw  string
		key  string
		ext  string
		norm string
	}{
		{
			"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ.jpg",
			"FJBBiR1VkAAU9HJ", "jpg",
			"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ?format=jpg&name=orig",
		},
		{
			"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ?format=png&name=900x900",
			"FJBBiR1VkAAU9HJ", "png",
			"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ?format=png&name=orig",
		},
		{
			"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ",
			"FJBBiR1VkAAU9HJ", "jpg",
			"https://pbs.twimg.com/media/FJBBiR1VkAAU9HJ?format=jpg&name=orig",
		},
	}
	r := newTestResolver()
	for _, tt := range tests {
		src, err := r.Parse(tt.raw)
		if err != nil {
			t.Errorf("Parse(%q) failed: %v", tt.raw, err)
			continue
		}
		img, ok := src.(*TwitterImageURL)
		if !ok {
			t.Errorf("Parse(%q) = %T, want *TwitterImageURL", tt.raw, src)
			continue
		}
		if img.Key != tt.key || img.Ext != tt.ext {
			t.Errorf("Parse(%q) = {%q, %q}, want {%q, %q}", tt.raw, img.Key, img.Ext, tt.key, tt.ext)
		}
		if got := img.String(); got != tt.norm {
			t.Errorf("String() = %q, want %q", got, tt.norm)
		}
	}
}
