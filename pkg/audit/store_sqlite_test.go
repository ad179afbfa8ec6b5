package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLiteStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	e := chainedEntry(t)

	if err := store.Store(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(got))
	}

	r := got[0]
	if r.EntryID != e.EntryID || r.Sequence != e.Sequence {
		t.Errorf("identity mismatch: %+v", r)
	}
	if r.Record.Decision != e.Record.Decision || r.Record.Stage != e.Record.Stage {
		t.Errorf("record mismatch: %+v", r.Record)
	}
	if len(r.Record.Codes) != 2 || r.Record.Codes[0] != "MANIPULATION" {
		t.Errorf("codes = %v", r.Record.Codes)
	}
	if r.Record.DriftScore == nil || *r.Record.DriftScore != *e.Record.DriftScore {
		t.Errorf("drift = %v", r.Record.DriftScore)
	}
	if r.Record.ContentFingerprint != e.Record.ContentFingerprint {
		t.Error("fingerprint not persisted")
	}
	if r.PreviousHash != e.PreviousHash || r.EntryHash != e.EntryHash {
		t.Error("chain fields not persisted")
	}
	if !r.AppendedAt.Equal(e.AppendedAt) {
		t.Errorf("appended_at = %v, want %v", r.AppendedAt, e.AppendedAt)
	}
}

func TestSQLiteStore_ListNewestFirst(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	mem := NewStore()
	for _, id := range []string{"a", "b", "c"} {
		e, err := mem.Append(testRecord(id, "ALLOW"))
		if err != nil {
			t.Fatal(err)
		}
		if err := store.Store(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries", len(got))
	}
	if got[0].Record.CheckID != "c" || got[1].Record.CheckID != "b" {
		t.Errorf("order: %s, %s", got[0].Record.CheckID, got[1].Record.CheckID)
	}
}

func TestSQLiteStore_Head(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	head, err := store.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head != "genesis" {
		t.Errorf("empty table head = %q", head)
	}

	e := chainedEntry(t)
	if err := store.Store(ctx, e); err != nil {
		t.Fatal(err)
	}
	head, err = store.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if head != e.EntryHash {
		t.Errorf("head = %q, want %q", head, e.EntryHash)
	}
}

func TestSQLiteStore_MirrorsInMemoryAppends(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	mem := NewStore()
	mem.OnAppend(func(e *Entry) {
		if err := store.Store(ctx, e); err != nil {
			t.Errorf("mirror write failed: %v", err)
		}
	})

	for i := 0; i < 3; i++ {
		if _, err := mem.Append(testRecord("c", "REJECT")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.List(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("mirrored %d entries, want 3", len(got))
	}
	head, err := store.Head(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := mem.List(1)[0].EntryHash
	if head != want {
		t.Errorf("mirrored head = %q, want %q", head, want)
	}
}
