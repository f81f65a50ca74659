package testsupport

import (
	"context"
	"testing"

	"memedex/internal/catalog"
	"memedex/internal/config"
)

// MustOpenStore opens a catalog.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSource registers a watched source for tests using the provided store.
func NewSource(t testing.TB, store *catalog.Store, path string, frequency *int) *catalog.WatchedSource {
	t.Helper()

	source, err := store.AddSource(context.Background(), path, "", frequency)
	if err != nil {
		t.Fatalf("store.AddSource: %v", err)
	}
	return source
}

// NewItem inserts an item for tests using the provided store.
func NewItem(t testing.TB, store *catalog.Store, sourceID int64, relPath string) *catalog.Item {
	t.Helper()

	item, created, err := store.InsertItemIfNew(context.Background(), sourceID, relPath, "")
	if err != nil {
		t.Fatalf("store.InsertItemIfNew: %v", err)
	}
	if !created {
		t.Fatalf("item %q already existed", relPath)
	}
	return item
}
