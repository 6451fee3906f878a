package graph

import (
	"context"
	"testing"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/session"
	"github.com/ayane-dev/musubi/internal/sources"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

type fakeNode struct {
	url     string
	related []sources.Source
	deleted bool
}

func (n *fakeNode) Site() string                                      { return "fake" }
func (n *fakeNode) Tokens() *urlkit.Tokens                            { return nil }
func (n *fakeNode) String() string                                    { return n.url }
func (n *fakeNode) PrimaryNames(context.Context) ([]string, error)    { return nil, nil }
func (n *fakeNode) SecondaryNames(context.Context) ([]string, error)  { return nil, nil }
func (n *fakeNode) Related(context.Context) ([]sources.Source, error) { return n.related, nil }
func (n *fakeNode) IsDeleted(context.Context) (bool, error)           { return n.deleted, nil }

type fakeGallery struct {
	url string
}

func (n *fakeGallery) Site() string                                    { return "fake" }
func (n *fakeGallery) Tokens() *urlkit.Tokens                          { return nil }
func (n *fakeGallery) String() string                                  { return n.url }
func (n *fakeGallery) Posts(context.Context) ([]sources.Source, error) { return nil, nil }

type fakePost struct {
	url string
}

func (n *fakePost) Site() string           { return "fake" }
func (n *fakePost) Tokens() *urlkit.Tokens { return nil }
func (n *fakePost) String() string         { return n.url }

type fakeRedirect struct {
	url    string
	target sources.Source
	err    error
}

func (n *fakeRedirect) Site() string           { return "fake" }
func (n *fakeRedirect) Tokens() *urlkit.Tokens { return nil }
func (n *fakeRedirect) String() string         { return n.url }
func (n *fakeRedirect) Resolved(context.Context) (sources.Source, error) {
	return n.target, n.err
}

func urlsOf(srcs []sources.Source) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.String()
	}
	return out
}

func assertURLs(t *testing.T, got []sources.Source, want []string) {
	t.Helper()
	gotURLs := urlsOf(got)
	if len(gotURLs) != len(want) {
		t.Fatalf("walk returned %v, want %v", gotURLs, want)
	}
	for i := range want {
		if gotURLs[i] != want[i] {
			t.Fatalf("walk returned %v, want %v", gotURLs, want)
		}
	}
}

func TestWalkSingleNode(t *testing.T) {
	seed := &fakeNode{url: "https://a.example/artist"}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), seed)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	assertURLs(t, got, []string{"https://a.example/artist"})
}

func TestWalkCycleVisitsEachNodeOnce(t *testing.T) {
	a := &fakeNode{url: "https://a.example/artist"}
	b := &fakeNode{url: "https://b.example/artist"}
	a.related = []sources.Source{b}
	b.related = []sources.Source{a}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), a)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	assertURLs(t, got, []string{"https://a.example/artist", "https://b.example/artist"})
}

func TestWalkPreservesDiscoveryOrder(t *testing.T) {
	c := &fakeNode{url: "https://c.example"}
	b := &fakeNode{url: "https://b.example", related: []sources.Source{c}}
	a := &fakeNode{url: "https://a.example", related: []sources.Source{b}}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), a)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	assertURLs(t, got, []string{"https://a.example", "https://b.example", "https://c.example"})
}

func TestWalkDeletedProfileIsLeaf(t *testing.T) {
	hidden := &fakeNode{url: "https://never.example"}
	dead := &fakeNode{url: "https://dead.example", deleted: true, related: []sources.Source{hidden}}
	seed := &fakeNode{url: "https://a.example", related: []sources.Source{dead}}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), seed)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	// The deleted profile stays in the result but its links are not followed.
	assertURLs(t, got, []string{"https://a.example", "https://dead.example"})
}

func TestWalkSubstitutesRedirects(t *testing.T) {
	target := &fakeNode{url: "https://target.example"}
	hop := &fakeRedirect{url: "https://short.example/x", target: target}
	seed := &fakeNode{url: "https://a.example", related: []sources.Source{hop}}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), seed)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	assertURLs(t, got, []string{"https://a.example", "https://target.example"})
}

func TestWalkDropsEdgeToGoneRedirectTarget(t *testing.T) {
	gone := &fakeRedirect{url: "https://short.example/x",
		err: &session.StatusError{URL: "https://short.example/x", Code: 404}}
	seed := &fakeNode{url: "https://a.example", related: []sources.Source{gone}}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), seed)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	assertURLs(t, got, []string{"https://a.example"})
}

func TestWalkGalleryAndUnknownAreLeaves(t *testing.T) {
	gallery := &fakeGallery{url: "https://g.example/works"}
	seed := &fakeNode{url: "https://a.example", related: []sources.Source{gallery}}
	w := NewWalker(logger.NewSilent(), nil)

	got, err := w.Walk(context.Background(), seed)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	assertURLs(t, got, []string{"https://a.example", "https://g.example/works"})
}

func TestWalkRejectsUnexpectedCapability(t *testing.T) {
	post := &fakePost{url: "https://p.example/post/1"}
	seed := &fakeNode{url: "https://a.example", related: []sources.Source{post}}
	w := NewWalker(logger.NewSilent(), nil)

	_, err := w.Walk(context.Background(), seed)
	var capErr *errors.CapabilityError
	if !errors.As(err, &capErr) {
		t.Fatalf("Walk error = %v, want CapabilityError", err)
	}
	if capErr.URL != "https://p.example/post/1" || capErr.DiscoveredBy != "https://a.example" {
		t.Fatalf("CapabilityError = %+v, wrong edge recorded", capErr)
	}
}

func TestWalkRedirectLoopFails(t *testing.T) {
	a := &fakeRedirect{url: "https://a.example"}
	b := &fakeRedirect{url: "https://b.example", target: a}
	a.target = b
	seed := &fakeNode{url: "https://seed.example", related: []sources.Source{a}}
	w := NewWalker(logger.NewSilent(), nil)

	if _, err := w.Walk(context.Background(), seed); err == nil {
		t.Fatal("Walk succeeded on a redirect loop, want error")
	}
}
