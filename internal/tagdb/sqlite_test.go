package tagdb

import (
	"os"
	"testing"
)

// testLogger implements the Logger interface for testing
type testLogger struct{}

func (l *testLogger) Info(format string, v ...interface{})  {}
func (l *testLogger) Debug(format string, v ...interface{}) {}
func (l *testLogger) Warn(format string, v ...interface{})  {}
func (l *testLogger) Error(format string, v ...interface{}) {}

func setupTestStore(t *testing.T) (*SQLiteStore, func()) {
	tmpFile, err := os.CreateTemp("", "test_tags_*.db")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	tmpFile.Close()

	path := tmpFile.Name()

	store, err := Open(path, &testLogger{})
	if err != nil {
		os.Remove(path)
		t.Fatalf("Failed to open tag store: %v", err)
	}

	cleanup := func() {
		store.Close()
		os.Remove(path)
	}

	return store, cleanup
}

func TestCreateAndFindByName(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	rec := &TagRecord{
		Name:       "houtengeki",
		OtherNames: []string{"方天戟"},
		URLs:       []string{"https://www.pixiv.net/users/98282"},
	}
	if err := store.CreateArtistTag(rec); err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	if rec.ID == "" {
		t.Error("Expected an ID to be assigned")
	}
	if rec.Category != CategoryArtist {
		t.Errorf("Expected category %q, got %q", CategoryArtist, rec.Category)
	}

	found, err := store.FindTagByName("houtengeki")
	if err != nil {
		t.Fatalf("Failed to find tag by name: %v", err)
	}
	if found == nil {
		t.Fatal("Expected to find the created tag")
	}
	if found.ID != rec.ID {
		t.Errorf("Expected ID %q, got %q", rec.ID, found.ID)
	}
	if len(found.OtherNames) != 1 || found.OtherNames[0] != "方天戟" {
		t.Errorf("Other names not round-tripped: %v", found.OtherNames)
	}
	if len(found.URLs) != 1 || found.URLs[0] != "https://www.pixiv.net/users/98282" {
		t.Errorf("URLs not round-tripped: %v", found.URLs)
	}
}

func TestFindTagByNameMissing(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	found, err := store.FindTagByName("nobody")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if found != nil {
		t.Errorf("Expected nil for a missing tag, got %+v", found)
	}
}

func TestFindTagsByURL(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	a := &TagRecord{Name: "artist_a", URLs: []string{"https://twitter.com/a", "https://www.pixiv.net/users/1"}}
	b := &TagRecord{Name: "artist_b", URLs: []string{"https://twitter.com/b"}}
	for _, rec := range []*TagRecord{a, b} {
		if err := store.CreateArtistTag(rec); err != nil {
			t.Fatalf("Failed to create tag %s: %v", rec.Name, err)
		}
	}

	tags, err := store.FindTagsByURL("https://twitter.com/a")
	if err != nil {
		t.Fatalf("Failed to find tags by url: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "artist_a" {
		t.Fatalf("Expected only artist_a, got %+v", tags)
	}

	tags, err = store.FindTagsByURL("https://nowhere.example")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(tags) != 0 {
		t.Errorf("Expected no tags for an unclaimed url, got %+v", tags)
	}
}

func TestUpdateArtistURLsUnions(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	rec := &TagRecord{Name: "artist_a", URLs: []string{"https://twitter.com/a"}}
	if err := store.CreateArtistTag(rec); err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}

	err := store.UpdateArtistURLs(rec.ID, []string{
		"https://twitter.com/a", // already present
		"https://www.pixiv.net/users/1",
	})
	if err != nil {
		t.Fatalf("Failed to update urls: %v", err)
	}

	found, err := store.FindTagByName("artist_a")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(found.URLs) != 2 {
		t.Errorf("Expected 2 urls after union, got %v", found.URLs)
	}
}

func TestDuplicateNameRejected(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	if err := store.CreateArtistTag(&TagRecord{Name: "artist_a"}); err != nil {
		t.Fatalf("Failed to create tag: %v", err)
	}
	if err := store.CreateArtistTag(&TagRecord{Name: "artist_a"}); err == nil {
		t.Error("Expected a unique constraint error for a duplicate name")
	}
}
