package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"token-score-engine/internal/infrastructure/logger"
)

func nopLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{
			name: "casing variants share a key",
			a:    Key("activity", "0xABC", 1000),
			b:    Key("activity", "0xabc", 1000),
			same: true,
		},
		{
			name: "different limits get distinct keys",
			a:    Key("activity", "0xabc", 1000),
			b:    Key("activity", "0xabc", 500),
			same: false,
		},
		{
			name: "different operations get distinct keys",
			a:    Key("activity", "0xabc"),
			b:    Key("holders", "0xabc"),
			same: false,
		},
		{
			name: "different tokens get distinct keys",
			a:    Key("holders", "0xabc"),
			b:    Key("holders", "0xdef"),
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.a == tt.b) != tt.same {
				t.Errorf("keys %q and %q: same=%v, want %v", tt.a, tt.b, tt.a == tt.b, tt.same)
			}
		})
	}
}

func TestCachedDoMemoizes(t *testing.T) {
	cached := NewCached(NewMemoryStore(), nopLogger())
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return map[string]int{"value": 42}, nil
	}

	var first, second map[string]int
	if err := cached.Do(ctx, "k", time.Minute, &first, fetch); err != nil {
		t.Fatalf("first Do() error: %v", err)
	}
	if err := cached.Do(ctx, "k", time.Minute, &second, fetch); err != nil {
		t.Fatalf("second Do() error: %v", err)
	}

	if calls != 1 {
		t.Errorf("fetch called %d times, want 1", calls)
	}
	if second["value"] != 42 {
		t.Errorf("cached value = %v, want 42", second["value"])
	}
}

func TestCachedDoExpiry(t *testing.T) {
	cached := NewCached(NewMemoryStore(), nopLogger())
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	var out int
	if err := cached.Do(ctx, "k", 10*time.Millisecond, &out, fetch); err != nil {
		t.Fatalf("Do() error: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if err := cached.Do(ctx, "k", 10*time.Millisecond, &out, fetch); err != nil {
		t.Fatalf("Do() after expiry error: %v", err)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times after expiry, want 2", calls)
	}
	if out != 2 {
		t.Errorf("out = %d, want refreshed value 2", out)
	}
}

func TestCachedDoErrorNotCached(t *testing.T) {
	cached := NewCached(NewMemoryStore(), nopLogger())
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, context.DeadlineExceeded
		}
		return "ok", nil
	}

	var out string
	if err := cached.Do(ctx, "k", time.Minute, &out, fetch); err == nil {
		t.Fatal("expected error from first fetch")
	}
	if err := cached.Do(ctx, "k", time.Minute, &out, fetch); err != nil {
		t.Fatalf("second Do() error: %v", err)
	}
	if out != "ok" {
		t.Errorf("out = %q, want ok", out)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "fresh", []byte("a"), time.Minute)
	store.Set(ctx, "stale1", []byte("b"), time.Millisecond)
	store.Set(ctx, "stale2", []byte("c"), time.Millisecond)

	time.Sleep(5 * time.Millisecond)

	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}

	if _, found, _ := store.Get(ctx, "fresh"); !found {
		t.Error("fresh entry was swept")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Set(ctx, "shared", []byte("v"), time.Minute)
		}()
		go func() {
			defer wg.Done()
			store.Get(ctx, "shared")
		}()
	}
	wg.Wait()

	if _, found, err := store.Get(ctx, "shared"); err != nil || !found {
		t.Errorf("Get after concurrent writes: found=%v err=%v", found, err)
	}
}
