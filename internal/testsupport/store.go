package testsupport

import (
	"context"
	"testing"

	"tabshot/internal/config"
	"tabshot/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedRecord writes a metadata record for url with the given status and returns it.
func SeedRecord(t testing.TB, st *store.Store, url string, status store.Status) store.Record {
	t.Helper()

	identity, err := store.IdentityFor(url)
	if err != nil {
		t.Fatalf("IdentityFor(%q): %v", url, err)
	}
	rec := store.Record{Identity: identity, SourceURL: url, Title: url, Status: status}
	if err := st.Set(context.Background(), rec); err != nil {
		t.Fatalf("store.Set: %v", err)
	}
	return rec
}
