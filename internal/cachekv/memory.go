package cachekv

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// item is a single stored value with its expiry.
type item struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is the local embedded KV backend. It gates access with a
// bounded-concurrency semaphore to avoid internal lock contention when many
// callers read/write at once.
type MemoryBackend struct {
	mu    sync.RWMutex
	items map[string]item
	gate  *semaphore.Weighted

	stopCleanup chan struct{}
}

func NewMemoryBackend(concurrency int64) *MemoryBackend {
	if concurrency <= 0 {
		concurrency = 64
	}
	backend := &MemoryBackend{
		items:       make(map[string]item),
		gate:        semaphore.NewWeighted(concurrency),
		stopCleanup: make(chan struct{}),
	}
	go backend.cleanupLoop()
	return backend
}

func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := b.gate.Acquire(ctx, 1); err != nil {
		return nil, false, err
	}
	defer b.gate.Release(1)

	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.items[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, true, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.gate.Acquire(ctx, 1); err != nil {
		return err
	}
	defer b.gate.Release(1)

	stored := make([]byte, len(value))
	copy(stored, value)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[key] = item{value: stored, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.items, key)
	return nil
}

func (b *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.items[key]
	if !ok {
		return false, nil
	}
	return time.Now().Before(entry.expiresAt), nil
}

func (b *MemoryBackend) Clear(ctx context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key := range b.items {
		if prefix == "" || strings.HasPrefix(key, prefix) {
			delete(b.items, key)
		}
	}
	return nil
}

func (b *MemoryBackend) Close() error {
	close(b.stopCleanup)
	return nil
}

func (b *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCleanup:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *MemoryBackend) sweep() {
	now := time.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, entry := range b.items {
		if now.After(entry.expiresAt) {
			delete(b.items, key)
		}
	}
}
