package cachekv

import (
	"context"
	"testing"
	"time"
)

func TestMemoryBackendSetGetRoundTrip(t *testing.T) {
	b := NewMemoryBackend(4)
	defer b.Close()
	ctx := context.Background()

	if err := b.Set(ctx, "search:abc", []byte("payload"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := b.Get(ctx, "search:abc")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(got) != "payload" {
		t.Fatalf("value = %q, want %q", got, "payload")
	}
}

func TestMemoryBackendExpiresAfterTTL(t *testing.T) {
	b := NewMemoryBackend(4)
	defer b.Close()
	ctx := context.Background()

	if err := b.Set(ctx, "k", []byte("v"), -time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatalf("expected an already-expired entry to miss")
	}
	if exists, _ := b.Exists(ctx, "k"); exists {
		t.Fatalf("expected Exists to report false for an expired entry")
	}
}

func TestMemoryBackendClearByPrefix(t *testing.T) {
	b := NewMemoryBackend(4)
	defer b.Close()
	ctx := context.Background()

	_ = b.Set(ctx, "search:a", []byte("1"), time.Minute)
	_ = b.Set(ctx, "search:b", []byte("2"), time.Minute)
	_ = b.Set(ctx, "crawljob:c", []byte("3"), time.Minute)

	if err := b.Clear(ctx, "search:"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "search:a"); ok {
		t.Fatalf("expected search:a to be cleared")
	}
	if _, ok, _ := b.Get(ctx, "search:b"); ok {
		t.Fatalf("expected search:b to be cleared")
	}
	if _, ok, _ := b.Get(ctx, "crawljob:c"); !ok {
		t.Fatalf("expected crawljob:c to survive clearing the search: prefix")
	}
}

func TestMemoryBackendGetReturnsACopyNotTheStoredSlice(t *testing.T) {
	b := NewMemoryBackend(4)
	defer b.Close()
	ctx := context.Background()

	original := []byte("payload")
	_ = b.Set(ctx, "k", original, time.Minute)
	got, _, _ := b.Get(ctx, "k")
	got[0] = 'X'

	again, _, _ := b.Get(ctx, "k")
	if string(again) != "payload" {
		t.Fatalf("mutating a returned value leaked into the store: %q", again)
	}
}
