package identity

import (
	"context"
	"testing"

	"github.com/ayane-dev/musubi/internal/errors"
	"github.com/ayane-dev/musubi/internal/logger"
	"github.com/ayane-dev/musubi/internal/sources"
	"github.com/ayane-dev/musubi/internal/tagdb"
	"github.com/ayane-dev/musubi/internal/urlkit"
)

// fakeStore is an in-memory tagdb.Store.
type fakeStore struct {
	tags    []*tagdb.TagRecord
	updated map[string][]string
}

func newFakeStore(tags ...*tagdb.TagRecord) *fakeStore {
	return &fakeStore{tags: tags, updated: map[string][]string{}}
}

func (s *fakeStore) FindTagsByURL(url string) ([]tagdb.TagRecord, error) {
	var out []tagdb.TagRecord
	for _, t := range s.tags {
		for _, u := range t.URLs {
			if u == url {
				out = append(out, *t)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) FindTagByName(name string) (*tagdb.TagRecord, error) {
	for _, t := range s.tags {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CreateArtistTag(rec *tagdb.TagRecord) error {
	if rec.ID == "" {
		rec.ID = rec.Name
	}
	s.tags = append(s.tags, rec)
	return nil
}

func (s *fakeStore) UpdateArtistURLs(tagID string, urls []string) error {
	s.updated[tagID] = urls
	return nil
}

func (s *fakeStore) Close() error { return nil }

// stubTranslit returns canned romanizations, standing in for the
// language-aware service.
type stubTranslit map[string]string

func (s stubTranslit) Transliterate(in string) (string, error) {
	if out, ok := s[in]; ok {
		return out, nil
	}
	return in, nil
}

func newTestResolver(store tagdb.Store, translit Transliterator) *Resolver {
	return NewResolver(store, translit, logger.NewSilent())
}

func TestSanitizeTagName(t *testing.T) {
	r := newTestResolver(newFakeStore(), stubTranslit{"蜘蛛の糸": "kumo no ito"})

	tests := []struct {
		in   string
		want string
	}{
		{"蜘蛛の糸", "kumo_no_ito"},
		{"houtengeki", "houtengeki"},
		{"pino (pixiv)", "pino_(pixiv)"},
		{"pino(pixiv)", "pino_(pixiv)"},
		{"  spaced  out  ", "spaced_out"},
		{"DANGERDROME!", "DANGERDROME"},
		{"__edge__", "edge"},
		{"a.b/c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := r.SanitizeTagName(tt.in); got != tt.want {
			t.Errorf("SanitizeTagName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidNewTagName(t *testing.T) {
	store := newFakeStore(&tagdb.TagRecord{Name: "taken_name", Category: tagdb.CategoryArtist})
	r := newTestResolver(store, nil)

	tests := []struct {
		name string
		want bool
	}{
		{"ab", false},          // too short
		{"(unbalanced", false}, // unmatched parenthesis
		{"bad[pair", false},
		{"taken_name", false},
		{"houtengeki", true},
		{"pino_(pixiv)", true},
	}
	for _, tt := range tests {
		got, err := r.ValidNewTagName(tt.name)
		if err != nil {
			t.Fatalf("ValidNewTagName(%q) failed: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("ValidNewTagName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSynthesizeTagNamePrefersPrimaryAlone(t *testing.T) {
	r := newTestResolver(newFakeStore(), nil)

	name, err := r.SynthesizeTagName([]string{"houtengeki"}, []string{"ht_gk"})
	if err != nil {
		t.Fatalf("SynthesizeTagName failed: %v", err)
	}
	if name != "houtengeki" {
		t.Errorf("got %q, want %q", name, "houtengeki")
	}
}

func TestSynthesizeTagNameFallsBackToQualifier(t *testing.T) {
	store := newFakeStore(&tagdb.TagRecord{Name: "houtengeki", Category: tagdb.CategoryArtist})
	r := newTestResolver(store, nil)

	name, err := r.SynthesizeTagName([]string{"houtengeki"}, []string{"pixiv98282"})
	if err != nil {
		t.Fatalf("SynthesizeTagName failed: %v", err)
	}
	if name != "houtengeki_(pixiv98282)" {
		t.Errorf("got %q, want %q", name, "houtengeki_(pixiv98282)")
	}
}

func TestSynthesizeTagNameExhaustion(t *testing.T) {
	// Every candidate is too short to ever validate.
	r := newTestResolver(newFakeStore(), nil)

	_, err := r.SynthesizeTagName([]string{"ab"}, nil)
	var exhausted *errors.TagExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want TagExhaustedError", err)
	}
}

func TestFindExistingTagUpdatesURLs(t *testing.T) {
	existing := &tagdb.TagRecord{
		ID:       "t1",
		Name:     "houtengeki",
		Category: tagdb.CategoryArtist,
		URLs:     []string{"https://www.pixiv.net/users/98282"},
	}
	store := newFakeStore(existing)
	r := newTestResolver(store, nil)

	candidates := []string{
		"https://twitter.com/houtengeki",
		"https://www.pixiv.net/users/98282",
	}
	name, err := r.FindExistingTag(candidates)
	if err != nil {
		t.Fatalf("FindExistingTag failed: %v", err)
	}
	if name != "houtengeki" {
		t.Errorf("got %q, want %q", name, "houtengeki")
	}
	if got := store.updated["t1"]; len(got) != 2 {
		t.Errorf("expected the full candidate set to be unioned, got %v", got)
	}
}

func TestFindExistingTagNoMatch(t *testing.T) {
	r := newTestResolver(newFakeStore(), nil)

	name, err := r.FindExistingTag([]string{"https://twitter.com/nobody"})
	if err != nil {
		t.Fatalf("FindExistingTag failed: %v", err)
	}
	if name != "" {
		t.Errorf("got %q, want empty", name)
	}
}

func TestFindExistingTagDuplicateClaim(t *testing.T) {
	url := "https://twitter.com/contested"
	store := newFakeStore(
		&tagdb.TagRecord{ID: "t1", Name: "artist_a", Category: tagdb.CategoryArtist, URLs: []string{url}},
		&tagdb.TagRecord{ID: "t2", Name: "artist_b", Category: tagdb.CategoryArtist, URLs: []string{url}},
	)
	r := newTestResolver(store, nil)

	_, err := r.FindExistingTag([]string{url})
	var dup *errors.DuplicateTagError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v, want DuplicateTagError", err)
	}
	if len(dup.Tags) != 2 {
		t.Errorf("expected both claiming tags recorded, got %v", dup.Tags)
	}
}

func TestFindExistingTagRejectsNonArtist(t *testing.T) {
	url := "https://twitter.com/franchise"
	store := newFakeStore(
		&tagdb.TagRecord{ID: "t1", Name: "some_series", Category: tagdb.CategoryCopyright, URLs: []string{url}},
	)
	r := newTestResolver(store, nil)

	if _, err := r.FindExistingTag([]string{url}); err == nil {
		t.Fatal("expected a hard error for a non-artist tag claim")
	}
}

type namedNode struct {
	url     string
	primary []string
}

func (n *namedNode) Site() string                                      { return "fake" }
func (n *namedNode) Tokens() *urlkit.Tokens                            { return nil }
func (n *namedNode) String() string                                    { return n.url }
func (n *namedNode) PrimaryNames(context.Context) ([]string, error)    { return n.primary, nil }
func (n *namedNode) SecondaryNames(context.Context) ([]string, error)  { return nil, nil }
func (n *namedNode) Related(context.Context) ([]sources.Source, error) { return nil, nil }
func (n *namedNode) IsDeleted(context.Context) (bool, error)           { return false, nil }

func TestResolveCreatesTagFromWalkedNodes(t *testing.T) {
	store := newFakeStore()
	r := newTestResolver(store, nil)

	nodes := []sources.Source{
		&namedNode{url: "https://www.pixiv.net/users/98282", primary: []string{"houtengeki"}},
		&namedNode{url: "https://twitter.com/houtengeki"},
	}
	rec, created, err := r.Resolve(context.Background(), nodes)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !created {
		t.Error("expected a new tag to be created")
	}
	if rec.Name != "houtengeki" {
		t.Errorf("tag name = %q, want %q", rec.Name, "houtengeki")
	}
	if len(rec.URLs) != 2 {
		t.Errorf("expected both urls claimed, got %v", rec.URLs)
	}
}

func TestResolveMatchesExistingTag(t *testing.T) {
	existing := &tagdb.TagRecord{
		ID:       "t1",
		Name:     "houtengeki",
		Category: tagdb.CategoryArtist,
		URLs:     []string{"https://twitter.com/houtengeki"},
	}
	store := newFakeStore(existing)
	r := newTestResolver(store, nil)

	nodes := []sources.Source{
		&namedNode{url: "https://twitter.com/houtengeki", primary: []string{"houtengeki"}},
	}
	rec, created, err := r.Resolve(context.Background(), nodes)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if created {
		t.Error("expected the existing tag to be matched, not a new one created")
	}
	if rec.Name != "houtengeki" {
		t.Errorf("tag name = %q, want %q", rec.Name, "houtengeki")
	}
}
