package store_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"tabshot/internal/store"
	"tabshot/internal/testsupport"
)

func TestSetIsUpsertLastWriterWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	rec := testsupport.SeedRecord(t, st, "https://a.test/", store.StatusPending)

	captured := time.Now().UTC().Truncate(time.Millisecond)
	rec.Status = store.StatusSavedEmbedded
	rec.Title = "A"
	rec.LastCaptureAt = &captured
	if err := st.Set(ctx, rec); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := st.Get(ctx, rec.Identity)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Status != store.StatusSavedEmbedded || got.Title != "A" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.LastCaptureAt == nil || !got.LastCaptureAt.Equal(captured) {
		t.Fatalf("unexpected capture time: %v", got.LastCaptureAt)
	}

	all, err := st.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one record after upsert, got %d", len(all))
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	got, err := st.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestRemoveAndStats(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	a := testsupport.SeedRecord(t, st, "https://a.test/", store.StatusSavedEmbedded)
	testsupport.SeedRecord(t, st, "https://b.test/", store.StatusError)
	testsupport.SeedRecord(t, st, "https://c.test/", store.StatusError)

	counts, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts[store.StatusError] != 2 || counts[store.StatusSavedEmbedded] != 1 || counts.Total() != 3 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	errored, err := st.List(ctx, store.StatusError)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(errored) != 2 {
		t.Fatalf("expected 2 errored records, got %d", len(errored))
	}

	if err := st.Remove(ctx, a.Identity); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := st.Remove(ctx, a.Identity); err != nil {
		t.Fatalf("second Remove should be a no-op: %v", err)
	}
	if got, _ := st.Get(ctx, a.Identity); got != nil {
		t.Fatalf("expected record removed, got %+v", got)
	}
}

func TestAssetTablesAreIndependent(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	data := testsupport.PNG(t, 4, 3)
	asset := store.Asset{Identity: "id-1", MimeType: "image/png", Data: data, Width: 4, Height: 3}
	if err := st.Legacy().Put(ctx, asset); err != nil {
		t.Fatalf("legacy Put: %v", err)
	}

	if got, err := st.Thumbnails().Get(ctx, "id-1"); err != nil || got != nil {
		t.Fatalf("expected embedded miss, got %+v err=%v", got, err)
	}
	got, err := st.Legacy().Get(ctx, "id-1")
	if err != nil {
		t.Fatalf("legacy Get: %v", err)
	}
	if got == nil || !bytes.Equal(got.Data, data) || got.ByteSize != int64(len(data)) {
		t.Fatalf("unexpected legacy asset: %+v", got)
	}

	count, size, err := st.Legacy().Usage(ctx)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if count != 1 || size != int64(len(data)) {
		t.Fatalf("unexpected usage: %d %d", count, size)
	}

	if err := st.Legacy().Delete(ctx, "id-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := st.Legacy().Has(ctx, "id-1"); ok {
		t.Fatal("expected legacy asset deleted")
	}
}

func TestDirectorySlotIsSingle(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if h, err := st.Directory(ctx); err != nil || h != nil {
		t.Fatalf("expected no directory, got %+v err=%v", h, err)
	}
	if _, err := st.SetDirectory(ctx, "/tmp/one"); err != nil {
		t.Fatalf("SetDirectory: %v", err)
	}
	if _, err := st.SetDirectory(ctx, "/tmp/two"); err != nil {
		t.Fatalf("SetDirectory: %v", err)
	}
	h, err := st.Directory(ctx)
	if err != nil {
		t.Fatalf("Directory: %v", err)
	}
	if h == nil || h.Path != "/tmp/two" {
		t.Fatalf("expected second directory to replace first, got %+v", h)
	}
	if err := st.ClearDirectory(ctx); err != nil {
		t.Fatalf("ClearDirectory: %v", err)
	}
	if h, _ := st.Directory(ctx); h != nil {
		t.Fatalf("expected cleared slot, got %+v", h)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := st.PutSetting(ctx, "force_active", "true"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	if err := st.PutSetting(ctx, "force_active", "false"); err != nil {
		t.Fatalf("PutSetting: %v", err)
	}
	settings, err := st.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if settings["force_active"] != "false" || len(settings) != 1 {
		t.Fatalf("unexpected settings: %v", settings)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	testsupport.SeedRecord(t, st, "https://a.test/", store.StatusNone)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := store.Open(cfg)
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch: %v", err)
		}
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	all, err := reopened.All(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("expected persisted record, got %v err=%v", all, err)
	}
}

func TestIdentityCanonicalization(t *testing.T) {
	a, err := store.IdentityFor("HTTPS://Example.COM#top")
	if err != nil {
		t.Fatalf("IdentityFor: %v", err)
	}
	b, err := store.IdentityFor("https://example.com/")
	if err != nil {
		t.Fatalf("IdentityFor: %v", err)
	}
	if a != b {
		t.Fatalf("expected equivalent urls to share identity: %s vs %s", a, b)
	}
	c, _ := store.IdentityFor("https://example.com/other")
	if c == a {
		t.Fatal("expected different pages to have different identities")
	}
	bare, err := store.CanonicalURL("a.test")
	if err != nil {
		t.Fatalf("CanonicalURL: %v", err)
	}
	if bare != "https://a.test/" {
		t.Fatalf("unexpected canonical url: %q", bare)
	}
	if _, err := store.IdentityFor("   "); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func execRaw(t *testing.T, path string, stmts ...string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

func TestOpenUpgradesOlderSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := st.Path()
	testsupport.SeedRecord(t, st, "https://a.test/", store.StatusNone)
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	execRaw(t, path, "DROP INDEX idx_metadata_updated", "UPDATE schema_version SET version = 1")

	upgraded, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen older schema: %v", err)
	}
	all, err := upgraded.All(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("records must survive the upgrade, got %v err=%v", all, err)
	}
	if err := upgraded.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	defer db.Close()
	var version, indexes int
	if err := db.QueryRow("SELECT version FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("read version: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type='index' AND name='idx_metadata_updated'").Scan(&indexes); err != nil {
		t.Fatalf("read index: %v", err)
	}
	if version != 2 || indexes != 1 {
		t.Fatalf("expected version 2 with index, got version %d indexes %d", version, indexes)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	path := st.Path()
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	execRaw(t, path, "UPDATE schema_version SET version = 99")

	if _, err := store.Open(cfg); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}
