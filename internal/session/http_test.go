package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ayane-dev/musubi/internal/config"
	"github.com/ayane-dev/musubi/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		RetryAttempts:   1,
		MaxConcurrent:   2,
		UserAgent:       "musubi-test",
		DomainRateLimit: map[string]float64{},
		HeadlessHosts:   []string{"twitter.com"},
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{&StatusError{URL: "https://nijie.info/members.php?id=1", Code: 404}, true},
		{&StatusError{URL: "https://nijie.info/members.php?id=1", Code: 410}, true},
		{&StatusError{URL: "https://nijie.info/members.php?id=1", Code: 500}, false},
		{fmt.Errorf("fetch failed: %w", &StatusError{Code: 404}), true},
		{errors.New("connection refused"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsNotFound(tt.err); got != tt.want {
			t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestNeedsHeadless(t *testing.T) {
	s := NewHTTPSession(testConfig(), logger.NewSilent())
	tests := []struct {
		url  string
		want bool
	}{
		{"https://twitter.com/noizave", true},
		{"https://mobile.twitter.com/noizave", true},
		{"https://www.pixiv.net/artworks/1", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		if got := s.needsHeadless(tt.url); got != tt.want {
			t.Errorf("needsHeadless(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		base     string
		location string
		want     string
	}{
		{"https://pixiv.me/noizave", "https://www.pixiv.net/users/9948", "https://www.pixiv.net/users/9948"},
		{"https://fantia.jp/somevanity", "/fanclubs/64496", "https://fantia.jp/fanclubs/64496"},
		{"https://fantia.jp/somevanity", "fanclubs/64496", "https://fantia.jp/fanclubs/64496"},
	}
	for _, tt := range tests {
		got, err := resolveLocation(tt.base, tt.location)
		if err != nil {
			t.Errorf("resolveLocation(%q, %q) failed: %v", tt.base, tt.location, err)
			continue
		}
		if got != tt.want {
			t.Errorf("resolveLocation(%q, %q) = %q, want %q", tt.base, tt.location, got, tt.want)
		}
	}
}

func TestRegistrableDomain(t *testing.T) {
	if got := registrableDomain("https://pic01.nijie.info/x.png"); got != "nijie.info" {
		t.Errorf("registrableDomain = %q, want nijie.info", got)
	}
	if got := registrableDomain("garbage"); got != "invalid" {
		t.Errorf("registrableDomain(garbage) = %q, want invalid", got)
	}
}
