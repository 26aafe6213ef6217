// Package cachekv implements the shared CachePort: an async KV
// abstraction with TTL, used under three namespaces (search:, crawljob:,
// stream:) by higher-level components. Backends are interchangeable.
package cachekv

import (
	"context"
	"time"
)

// Port is the shared cache abstraction every namespace is built on.
type Port interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context, prefix string) error
	Close() error
}
