package urlkit

import (
	"reflect"
	"testing"
)

func TestTokenizeSplitsHost(t *testing.T) {
	tests := []struct {
		raw       string
		host      string
		domain    string
		subdomain string
	}{
		{"https://www.pixiv.net/artworks/46324488", "www.pixiv.net", "pixiv.net", "www"},
		{"https://pixiv.net/artworks/46324488", "pixiv.net", "pixiv.net", ""},
		{"https://sp.nijie.info/view.php?id=1", "sp.nijie.info", "nijie.info", "sp"},
		{"https://re-face.booth.pm/items/3435711", "re-face.booth.pm", "booth.pm", "re-face"},
		{"https://WWW.PIXIV.NET/users/9948", "www.pixiv.net", "pixiv.net", "www"},
		{"https://nijie.info:443/view.php?id=1", "nijie.info", "nijie.info", ""},
	}
	for _, tt := range tests {
		toks, err := Tokenize(tt.raw)
		if err != nil {
			t.Fatalf("Tokenize(%q) failed: %v", tt.raw, err)
		}
		if toks.Host != tt.host {
			t.Errorf("Tokenize(%q).Host = %q, want %q", tt.raw, toks.Host, tt.host)
		}
		if toks.Domain != tt.domain {
			t.Errorf("Tokenize(%q).Domain = %q, want %q", tt.raw, toks.Domain, tt.domain)
		}
		if toks.Subdomain != tt.subdomain {
			t.Errorf("Tokenize(%q).Subdomain = %q, want %q", tt.raw, toks.Subdomain, tt.subdomain)
		}
	}
}

func TestTokenizeSegments(t *testing.T) {
	toks, err := Tokenize("https://www.pixiv.net//en//artworks/46324488/")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	want := []string{"en", "artworks", "46324488"}
	if !reflect.DeepEqual(toks.Segments, want) {
		t.Errorf("Segments = %v, want %v", toks.Segments, want)
	}
	if got := toks.Path(); got != "en/artworks/46324488" {
		t.Errorf("Path() = %q", got)
	}
}

func TestTokenizeQueryLastWins(t *testing.T) {
	toks, err := Tokenize("https://nijie.info/view.php?id=1&id=2")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if got := toks.Param("id"); got != "2" {
		t.Errorf("Param(id) = %q, want 2", got)
	}
	if got := toks.Param("missing"); got != "" {
		t.Errorf("Param(missing) = %q, want empty", got)
	}
}

func TestTokenizeUnescapes(t *testing.T) {
	toks, err := Tokenize("https%3A%2F%2Fwww.pixiv.net%2Fartworks%2F46324488")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	if toks.Domain != "pixiv.net" {
		t.Errorf("Domain = %q, want pixiv.net", toks.Domain)
	}
}

func TestTokenizeRejections(t *testing.T) {
	tests := []string{
		"ftp://pixiv.net/whatever",
		"not a url at all",
		"https://",
		"/artworks/46324488",
	}
	for _, raw := range tests {
		if _, err := Tokenize(raw); err == nil {
			t.Errorf("Tokenize(%q) succeeded, want malformed error", raw)
		}
	}
}

func TestTokenizeMemoized(t *testing.T) {
	a, err := Tokenize("https://www.pixiv.net/artworks/1")
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	b, _ := Tokenize("https://www.pixiv.net/artworks/1")
	if a != b {
		t.Error("expected identical *Tokens for identical input")
	}
}
