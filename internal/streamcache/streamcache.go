// Package streamcache namespaces cachekv.Port for resolved-stream entries,
// keyed by hoster and source URL, with a short TTL since direct links
// typically expire.
package streamcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/strob0t/scavengarr/internal/cachekv"
	"github.com/strob0t/scavengarr/internal/domain"
)

const DefaultTTL = 10 * time.Minute

type Cache struct {
	store cachekv.Port
	ttl   time.Duration
}

func New(store cachekv.Port, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl}
}

func key(hosterName, sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return fmt.Sprintf("%s%s:%s", cachekv.NamespaceStream, hosterName, hex.EncodeToString(sum[:]))
}

func (c *Cache) Get(ctx context.Context, hosterName, sourceURL string) (domain.ResolvedStream, bool, error) {
	raw, ok, err := c.store.Get(ctx, key(hosterName, sourceURL))
	if err != nil || !ok {
		return domain.ResolvedStream{}, false, err
	}
	var stream domain.ResolvedStream
	if err := json.Unmarshal(raw, &stream); err != nil {
		return domain.ResolvedStream{}, false, fmt.Errorf("streamcache: decode: %w", err)
	}
	return stream, true, nil
}

func (c *Cache) Set(ctx context.Context, hosterName, sourceURL string, stream domain.ResolvedStream) error {
	encoded, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("streamcache: encode: %w", err)
	}
	ttl := c.ttl
	if stream.ExpiresAt != nil {
		if remaining := time.Until(*stream.ExpiresAt); remaining > 0 && remaining < ttl {
			ttl = remaining
		}
	}
	return c.store.Set(ctx, key(hosterName, sourceURL), encoded, ttl)
}
