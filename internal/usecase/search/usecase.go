// Package search implements the search use case: fingerprint
// the query, consult the search cache, run the plugin under the scraping
// engine on a miss, materialize each result into a stored CrawlJob, and
// return the item list.
package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/strob0t/scavengarr/internal/cachekv"
	"github.com/strob0t/scavengarr/internal/crawljob"
	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/metrics"
	"github.com/strob0t/scavengarr/internal/plugin"
	"github.com/strob0t/scavengarr/internal/scrapeengine"
)

var (
	ErrEmptyQuery    = errors.New("search: q must be non-empty unless extended=1")
	ErrUnknownAction = errors.New("search: action must be \"search\" or \"caps\"")
)

const (
	DefaultCacheTTL = 900 * time.Second
	// defaultStaleMultiplier sizes the stale window whenever no explicit
	// stale TTL is set (staleTTL = cacheTTL * 3).
	defaultStaleMultiplier = 3
	// refreshTimeout bounds a background stale-revalidation scrape; it
	// runs detached from the request that triggered it, so it gets its
	// own budget rather than inheriting a (by-then-gone) request deadline.
	refreshTimeout = 30 * time.Second
)

// cacheEnvelope is the JSON value stored under the search: namespace. It
// carries StoredAt so a later Get can tell a fresh hit from a stale one
// without a second cache round-trip.
type cacheEnvelope struct {
	Results  []domain.SearchResult `json:"results"`
	StoredAt time.Time             `json:"stored_at"`
}

// Item pairs a validated SearchResult with the CrawlJob id materialized
// for it, the shape the Torznab presenter renders.
type Item struct {
	Result domain.SearchResult
	JobID  string
}

// UseCase implements C10.
type UseCase struct {
	registry        *plugin.Registry
	engine          *scrapeengine.Engine
	cache           cachekv.Port
	cacheTTL        time.Duration
	staleTTL        time.Duration
	crawlFactory    *crawljob.Factory
	crawlRepo       *crawljob.Repository
	logger          *slog.Logger
	developmentMode bool

	refreshing sync.Map // fingerprint (string) -> struct{}, in-flight background refreshes
}

func New(registry *plugin.Registry, engine *scrapeengine.Engine, cache cachekv.Port, crawlFactory *crawljob.Factory, crawlRepo *crawljob.Repository, logger *slog.Logger) *UseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UseCase{
		registry:     registry,
		engine:       engine,
		cache:        cache,
		cacheTTL:     DefaultCacheTTL,
		staleTTL:     DefaultCacheTTL * defaultStaleMultiplier,
		crawlFactory: crawlFactory,
		crawlRepo:    crawlRepo,
		logger:       logger,
	}
}

func (u *UseCase) WithCacheTTL(ttl time.Duration) *UseCase {
	if ttl > 0 {
		u.cacheTTL = ttl
		if u.staleTTL <= ttl {
			u.staleTTL = ttl * defaultStaleMultiplier
		}
	}
	return u
}

// WithStaleTTL sets how long past cacheTTL a cached entry is still served
// immediately while one background refresh repopulates it. Must exceed
// cacheTTL or it has no effect.
func (u *UseCase) WithStaleTTL(ttl time.Duration) *UseCase {
	if ttl > u.cacheTTL {
		u.staleTTL = ttl
	}
	return u
}

func (u *UseCase) WithDevelopmentMode(dev bool) *UseCase {
	u.developmentMode = dev
	return u
}

// Execute runs the search use case. cacheHit reports whether the result
// came from the search cache (callers surface this as the X-Cache: HIT
// response header).
func (u *UseCase) Execute(ctx context.Context, q domain.Query) (items []Item, cacheHit bool, err error) {
	if err := u.validate(q); err != nil {
		return nil, false, err
	}

	fingerprint := Fingerprint(q)
	cacheKey := cachekv.NamespaceSearch + fingerprint

	if u.cache != nil {
		if raw, ok, getErr := u.cache.Get(ctx, cacheKey); getErr == nil && ok {
			var envelope cacheEnvelope
			if json.Unmarshal(raw, &envelope) == nil {
				metrics.CacheHitsTotal.WithLabelValues("search").Inc()
				age := time.Since(envelope.StoredAt)
				if age > u.cacheTTL && age <= u.staleTTL {
					u.triggerStaleRefresh(fingerprint, cacheKey, q)
				}
				return u.materialize(ctx, envelope.Results), true, nil
			}
		} else if getErr != nil {
			u.logger.Warn("search cache read failed, falling through to live scrape",
				slog.String("error", getErr.Error()))
		}
		metrics.CacheMissesTotal.WithLabelValues("search").Inc()
	}

	results, err := u.scrape(ctx, q)
	if err != nil {
		u.logger.Warn("plugin search failed", slog.String("plugin", q.PluginName), slog.String("error", err.Error()))
		if u.developmentMode {
			return nil, false, err
		}
		return []Item{}, false, nil
	}

	u.storeCache(ctx, cacheKey, results)

	return u.materialize(ctx, results), false, nil
}

// scrape resolves the plugin and runs it under the scraping engine; it is
// the shared path for both a live request miss and a background stale
// refresh.
func (u *UseCase) scrape(ctx context.Context, q domain.Query) ([]domain.SearchResult, error) {
	p, err := u.registry.Get(q.PluginName)
	if err != nil {
		return nil, err
	}
	return u.engine.Search(ctx, p, q)
}

func (u *UseCase) storeCache(ctx context.Context, cacheKey string, results []domain.SearchResult) {
	if u.cache == nil {
		return
	}
	envelope := cacheEnvelope{Results: results, StoredAt: time.Now()}
	encoded, encErr := json.Marshal(envelope)
	if encErr != nil {
		return
	}
	ttl := u.cacheTTL
	if u.staleTTL > ttl {
		ttl = u.staleTTL
	}
	if setErr := u.cache.Set(ctx, cacheKey, encoded, ttl); setErr != nil {
		u.logger.Warn("search cache write failed", slog.String("error", setErr.Error()))
	}
}

// triggerStaleRefresh repopulates a stale-but-not-expired cache entry in
// the background, at most once per fingerprint at a time. The caller's
// response is already served from the stale value; this never blocks the
// request.
func (u *UseCase) triggerStaleRefresh(fingerprint, cacheKey string, q domain.Query) {
	if _, alreadyRefreshing := u.refreshing.LoadOrStore(fingerprint, struct{}{}); alreadyRefreshing {
		return
	}
	go func() {
		defer u.refreshing.Delete(fingerprint)
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		results, err := u.scrape(ctx, q)
		if err != nil {
			u.logger.Warn("stale cache refresh failed, keeping stale entry",
				slog.String("plugin", q.PluginName), slog.String("error", err.Error()))
			return
		}
		u.storeCache(ctx, cacheKey, results)
	}()
}

func (u *UseCase) validate(q domain.Query) error {
	switch q.Action {
	case "search", "caps":
	default:
		return ErrUnknownAction
	}
	if q.Action == "search" && strings.TrimSpace(q.Q) == "" && !q.Extended {
		return ErrEmptyQuery
	}
	if strings.TrimSpace(q.PluginName) == "" {
		return fmt.Errorf("search: plugin_name required")
	}
	return nil
}

// materialize builds and persists a CrawlJob per result; a failure on any
// single result is logged and that result is skipped, never failing the
// whole request.
func (u *UseCase) materialize(ctx context.Context, results []domain.SearchResult) []Item {
	items := make([]Item, 0, len(results))
	for _, result := range results {
		job, err := u.crawlFactory.Build(result)
		if err != nil {
			u.logger.Warn("crawljob build failed, skipping result",
				slog.String("title", result.Title), slog.String("error", err.Error()))
			continue
		}
		saved, err := u.crawlRepo.Save(ctx, job)
		if err != nil {
			u.logger.Warn("crawljob store failed, skipping result",
				slog.String("title", result.Title), slog.String("error", err.Error()))
			continue
		}
		metrics.CrawlJobsCreatedTotal.Inc()
		items = append(items, Item{Result: result, JobID: saved.JobID})
	}
	return items
}

// Fingerprint computes the cache key input: SHA-256 over
// plugin_name:normalized_q:category. Offset/limit/language are
// deliberately excluded so pagination and locale never fragment the cache.
func Fingerprint(q domain.Query) string {
	normalizedQ := strings.ToLower(strings.TrimSpace(q.Q))
	input := q.PluginName + ":" + normalizedQ + ":" + q.Category
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
