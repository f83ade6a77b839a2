package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), nopLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want miss", ok, err)
	}

	if err := store.Set(ctx, "k", []byte(`{"v":1}`), time.Hour); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	data, ok, err := store.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get(k) = ok %v, err %v; want hit", ok, err)
	}
	if string(data) != `{"v":1}` {
		t.Errorf("Get(k) = %q, want original payload", data)
	}

	// Replacing an entry keeps a single row per key
	if err := store.Set(ctx, "k", []byte(`{"v":2}`), time.Hour); err != nil {
		t.Fatalf("Set() replace error: %v", err)
	}
	data, _, _ = store.Get(ctx, "k")
	if string(data) != `{"v":2}` {
		t.Errorf("Get(k) after replace = %q, want new payload", data)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Error("Get(k) after Delete reported a hit")
	}
}

func TestSQLiteStoreLazyExpiry(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "stale", []byte("x"), -time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	if _, ok, err := store.Get(ctx, "stale"); err != nil || ok {
		t.Fatalf("expired entry: ok %v, err %v; want lazy-evicted miss", ok, err)
	}
}

func TestSQLiteStoreSweep(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "stale", []byte("x"), -time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := store.Set(ctx, "fresh", []byte("y"), time.Hour); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep() removed %d entries, want 1", removed)
	}

	if _, ok, _ := store.Get(ctx, "fresh"); !ok {
		t.Error("Sweep() removed a live entry")
	}
}
