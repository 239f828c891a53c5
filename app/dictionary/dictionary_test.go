package dictionary

import (
	"testing"
)

func TestUpsertAndLookupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Upsert("hello", "hello", "hallo", "en", "de", "test-engine", 0.9); err != nil {
		t.Fatalf("unexpected upsert error: %v", err)
	}

	entry, ok := store.Lookup("hello", "en", "de")
	if !ok || entry.Translation != "hallo" {
		t.Fatalf("expected hallo, got %+v ok=%v", entry, ok)
	}
}

func TestUpsertMergesUsageCountAndBestConfidence(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir, 100)

	store.Upsert("hi", "hi", "hallo", "en", "de", "engine-a", 0.6)
	store.Upsert("hi", "hi", "hallo!", "en", "de", "engine-b", 0.9)

	entry, ok := store.Lookup("hi", "en", "de")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if entry.UsageCount != 2 {
		t.Fatalf("expected usage_count 2, got %d", entry.UsageCount)
	}
	if entry.Confidence != 0.9 {
		t.Fatalf("expected best confidence 0.9 retained, got %f", entry.Confidence)
	}
}

func TestAutoFlushPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir, 1) // flush on every upsert

	if err := store.Upsert("x", "x", "y", "en", "de", "engine", 0.8); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded, err := NewStore(dir, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, ok := reloaded.Lookup("x", "en", "de")
	if !ok || entry.Translation != "y" {
		t.Fatalf("expected persisted entry after reload, got %+v ok=%v", entry, ok)
	}
}

func TestLookupMissingPairReturnsEmptyDictionary(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStore(dir, 100)
	if _, ok := store.Lookup("anything", "fr", "it"); ok {
		t.Fatal("expected no entry in a freshly created pair")
	}
}
