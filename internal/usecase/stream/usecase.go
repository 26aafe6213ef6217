// Package stream implements the stream use case: resolve a
// title, fan out a search across candidate plugins with a per-plugin
// deadline, convert and score the combined results, rank them, and
// eagerly resolve the top N into direct hoster URLs. The remainder are
// registered for lazy resolution behind a play redirect.
package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/strob0t/scavengarr/internal/cachekv"
	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/health"
	"github.com/strob0t/scavengarr/internal/metadata"
	"github.com/strob0t/scavengarr/internal/plugin"
	"github.com/strob0t/scavengarr/internal/releaseparse"
	"github.com/strob0t/scavengarr/internal/resolver"
	"github.com/strob0t/scavengarr/internal/scrapeengine"
	"github.com/strob0t/scavengarr/internal/streamcache"
)

const (
	DefaultPerPluginDeadline = 20 * time.Second
	DefaultEagerResolveCount = 3
	pendingTTL               = 10 * time.Minute
	pendingKeyPrefix         = cachekv.NamespaceStream + "pending:"
)

// Registry is the slice of plugin.Registry this use case needs.
type Registry interface {
	Names() []string
	Get(name string) (plugin.Plugin, error)
}

// PendingStream is what a lazy /stremio/play/{stream_id} redirect needs
// to resolve on click.
type PendingStream struct {
	SourceURL  string
	HosterHint string
}

// UseCase implements C11.
type UseCase struct {
	registry   Registry
	engine     *scrapeengine.Engine
	metaResolver metadata.Resolver
	resolvers  *resolver.Registry
	streamCache *streamcache.Cache
	pendingCache cachekv.Port
	profile    domain.StreamRankingProfile
	logger     *slog.Logger
	health     *health.Tracker

	perPluginDeadline time.Duration
	eagerResolveCount int
}

func New(
	registry Registry,
	engine *scrapeengine.Engine,
	metaResolver metadata.Resolver,
	resolvers *resolver.Registry,
	streamCache *streamcache.Cache,
	pendingCache cachekv.Port,
	logger *slog.Logger,
) *UseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &UseCase{
		registry:          registry,
		engine:            engine,
		metaResolver:      metaResolver,
		resolvers:         resolvers,
		streamCache:       streamCache,
		pendingCache:      pendingCache,
		profile:           domain.DefaultStreamRankingProfile(),
		logger:            logger,
		perPluginDeadline: DefaultPerPluginDeadline,
		eagerResolveCount: DefaultEagerResolveCount,
	}
}

func (u *UseCase) WithProfile(p domain.StreamRankingProfile) *UseCase {
	u.profile = p
	return u
}

func (u *UseCase) WithPerPluginDeadline(d time.Duration) *UseCase {
	if d > 0 {
		u.perPluginDeadline = d
	}
	return u
}

func (u *UseCase) WithEagerResolveCount(n int) *UseCase {
	if n >= 0 {
		u.eagerResolveCount = n
	}
	return u
}

func (u *UseCase) WithHealthTracker(tracker *health.Tracker) *UseCase {
	u.health = tracker
	return u
}

// pluginAttempt is one candidate plugin's fan-out outcome: queued, then
// running, then done, timeout, error, or cancelled.
type pluginAttempt struct {
	name    string
	state   string
	results []domain.SearchResult
}

// Execute runs the full stream use case for one IMDB id, optional
// season/episode. It returns ranked candidates with the top
// eagerResolveCount already resolved to a direct URL.
func (u *UseCase) Execute(ctx context.Context, imdbID string, season, episode *int) ([]domain.RankedStream, error) {
	title, err := u.metaResolver.Resolve(ctx, imdbID)
	if err != nil {
		return nil, fmt.Errorf("stream: title resolution failed: %w", err)
	}

	mediaType := "movie"
	if season != nil || episode != nil {
		mediaType = "series"
	}
	candidates := u.selectCandidates(mediaType)
	attempts := u.fanOut(ctx, candidates, title, season, episode)

	var allResults []resultWithPlugin
	for _, a := range attempts {
		for _, r := range a.results {
			allResults = append(allResults, resultWithPlugin{result: r})
		}
	}

	ranked := u.convertScoreRank(allResults, title, season, episode)

	eager := u.eagerResolveCount
	if eager > len(ranked) {
		eager = len(ranked)
	}
	for i := range ranked[:eager] {
		u.resolveEager(ctx, &ranked[i])
	}
	for i := eager; i < len(ranked); i++ {
		u.attachPlayURL(ctx, &ranked[i])
	}

	return ranked, nil
}

// selectCandidates filters registered plugins down to those whose
// results can actually be streamed: a download-only plugin's links feed
// the CrawlJob path, not a player, and a movie-only site has nothing for
// a series request.
func (u *UseCase) selectCandidates(mediaType string) []string {
	var out []string
	for _, name := range u.registry.Names() {
		p, err := u.registry.Get(name)
		if err != nil {
			continue
		}
		desc := p.Descriptor()
		if desc.Provides != "stream" {
			continue
		}
		if !desc.SupportsMediaType(mediaType) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// fanOut launches one search per candidate plugin, each under its own
// deadline; the outer ctx cancellation cancels every in-flight call.
// Whichever complete in time are aggregated; the rest are recorded as
// timeouts.
func (u *UseCase) fanOut(ctx context.Context, names []string, title metadata.Title, season, episode *int) []pluginAttempt {
	var (
		mu       sync.Mutex
		attempts = make([]pluginAttempt, 0, len(names))
		wg       sync.WaitGroup
	)

	query := domain.Query{
		Action: "search",
		Q:      title.Primary,
		Season: season,
		Episode: episode,
	}

	for _, name := range names {
		if u.health != nil && !u.health.Allow(name) {
			mu.Lock()
			attempts = append(attempts, pluginAttempt{name: name, state: "cancelled"})
			mu.Unlock()
			continue
		}
		p, err := u.registry.Get(name)
		if err != nil {
			continue
		}
		wg.Add(1)
		go func(name string, p plugin.Plugin) {
			defer wg.Done()
			pluginCtx, cancel := context.WithTimeout(ctx, u.perPluginDeadline)
			defer cancel()

			started := time.Now()
			results, err := u.engine.Search(pluginCtx, p, query)
			latency := time.Since(started)

			timeout := pluginCtx.Err() != nil && ctx.Err() == nil
			state := "done"
			switch {
			case timeout:
				state = "timeout"
			case ctx.Err() != nil:
				state = "cancelled"
			case err != nil:
				state = "error"
			}
			if err != nil {
				u.logger.Warn("stream plugin attempt failed",
					slog.String("plugin", name), slog.String("state", state), slog.String("error", err.Error()))
			}
			if u.health != nil {
				u.health.RecordResult(name, latency, timeout, err)
			}

			mu.Lock()
			attempts = append(attempts, pluginAttempt{name: name, state: state, results: results})
			mu.Unlock()
		}(name, p)
	}
	wg.Wait()
	return attempts
}

type resultWithPlugin struct {
	result domain.SearchResult
}

// convertScoreRank converts each result to a RankedStream and scores it
// on title-match, year, episode exactness, quality, and language
// preference, then applies a stable sort with hoster-preference and
// insertion-order tie-breaks.
func (u *UseCase) convertScoreRank(results []resultWithPlugin, title metadata.Title, season, episode *int) []domain.RankedStream {
	queryMeta := releaseparse.ParseTitle(title.Primary)
	altMeta := releaseparse.ParseTitle(title.Alternate)

	out := make([]domain.RankedStream, 0, len(results))
	for _, rp := range results {
		r := rp.result
		enrichment := releaseparse.Enrich(firstNonEmpty(r.ReleaseName, r.Title))
		enrichment.HosterGuess = releaseparse.HosterGuess(r.DownloadLink)

		stream := domain.RankedStream{
			Title:       r.Title,
			ReleaseName: r.ReleaseName,
			Quality:     enrichment.Quality,
			Language:    enrichment.Language,
			Hoster:      enrichment.HosterGuess,
			ProxyHeaders: domain.ProxyHeaders{
				Referer: r.SourceURL,
			},
		}
		if r.Size > 0 {
			size := r.Size
			stream.SizeBytes = &size
		}
		stream.Score = u.score(queryMeta, altMeta, title.Year, season, episode, enrichment, r)
		out = append(out, stream)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return u.hosterRank(out[i].Hoster) < u.hosterRank(out[j].Hoster)
	})
	return out
}

func (u *UseCase) score(queryMeta, altMeta releaseparse.Meta, queryYear int, season, episode *int, enrichment domain.SearchEnrichment, r domain.SearchResult) float64 {
	resultMeta := releaseparse.ParseTitle(firstNonEmpty(r.ReleaseName, r.Title))

	titleScore := tokenCoverage(queryMeta, resultMeta)
	if altScore := tokenCoverage(altMeta, resultMeta); altScore > titleScore {
		titleScore = altScore
	}

	score := u.profile.TitleMatchWeight * titleScore

	if queryYear > 0 {
		if enrichment.Year == queryYear {
			score += u.profile.YearMatchWeight * 10
		} else if enrichment.Year > 0 {
			score -= u.profile.YearMatchWeight * 5
		}
	}

	if episode != nil {
		if enrichment.Episode == *episode && (season == nil || enrichment.Season == *season) {
			score += u.profile.EpisodeWeight * 10
		} else if enrichment.Episode > 0 {
			score -= u.profile.EpisodeWeight * 8
		}
	}

	score += u.profile.QualityWeight * qualityRank(enrichment.Quality)

	if u.profile.PreferredLanguage != "" && enrichment.Language == u.profile.PreferredLanguage {
		score += u.profile.LanguageWeight * 5
	}

	return score
}

func tokenCoverage(query, candidate releaseparse.Meta) float64 {
	if len(query.TokenSet) == 0 {
		return 0
	}
	matches := 0
	for token := range query.TokenSet {
		if _, ok := candidate.TokenSet[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query.TokenSet))
}

func qualityRank(quality string) float64 {
	switch quality {
	case "2160p":
		return 4
	case "1080p":
		return 3
	case "720p":
		return 2
	case "480p":
		return 1
	case "CAM":
		return -2
	default:
		return 0
	}
}

func (u *UseCase) hosterRank(hoster string) int {
	for i, preferred := range u.profile.HosterPreference {
		if strings.EqualFold(preferred, hoster) {
			return i
		}
	}
	return len(u.profile.HosterPreference)
}

// resolveEager pre-resolves a top-N candidate into a direct URL,
// consulting the short-TTL stream cache first.
func (u *UseCase) resolveEager(ctx context.Context, s *domain.RankedStream) {
	sourceURL := s.ProxyHeaders.Referer
	if sourceURL == "" {
		return
	}
	hosterHint := s.Hoster

	if u.streamCache != nil {
		if cached, ok, err := u.streamCache.Get(ctx, hosterHint, sourceURL); err == nil && ok {
			applyResolved(s, cached)
			return
		}
	}

	resolved, err := u.resolvers.Resolve(ctx, sourceURL, hosterHint)
	if err != nil {
		u.logger.Warn("stream resolver failed, falling back to lazy play endpoint",
			slog.String("source", sourceURL), slog.String("error", err.Error()))
		u.storePending(ctx, s)
		return
	}
	applyResolved(s, resolved)
	if u.streamCache != nil {
		if err := u.streamCache.Set(ctx, hosterHint, sourceURL, resolved); err != nil {
			u.logger.Warn("stream cache write failed", slog.String("error", err.Error()))
		}
	}
}

func applyResolved(s *domain.RankedStream, resolved domain.ResolvedStream) {
	s.DirectURL = resolved.DirectURL
	s.NotWebReady = true
	s.ProxyHeaders = domain.ProxyHeaders{
		Referer:   resolved.HeadersRequired["Referer"],
		UserAgent: resolved.HeadersRequired["User-Agent"],
	}
	if resolved.HosterName != "" {
		s.Hoster = resolved.HosterName
	}
}

// attachPlayURL stores the pending source/hint under a fresh id so
// /stremio/play/{stream_id} can resolve it lazily on click.
func (u *UseCase) attachPlayURL(ctx context.Context, s *domain.RankedStream) {
	u.storePending(ctx, s)
}

func (u *UseCase) storePending(ctx context.Context, s *domain.RankedStream) {
	if u.pendingCache == nil || s.ProxyHeaders.Referer == "" {
		return
	}
	id := uuid.NewString()
	encoded := encodePending(PendingStream{SourceURL: s.ProxyHeaders.Referer, HosterHint: s.Hoster})
	if err := u.pendingCache.Set(ctx, pendingKeyPrefix+id, encoded, pendingTTL); err != nil {
		u.logger.Warn("pending stream store failed", slog.String("error", err.Error()))
		return
	}
	s.PlayURL = id
}

// ResolvePending resolves a previously stored pending stream id, used by
// the /stremio/play/{stream_id} handler.
func (u *UseCase) ResolvePending(ctx context.Context, streamID string) (domain.ResolvedStream, error) {
	raw, ok, err := u.pendingCache.Get(ctx, pendingKeyPrefix+streamID)
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("stream: pending lookup: %w", err)
	}
	if !ok {
		return domain.ResolvedStream{}, fmt.Errorf("stream: unknown or expired stream id %s", streamID)
	}
	pending, err := decodePending(raw)
	if err != nil {
		return domain.ResolvedStream{}, err
	}

	if u.streamCache != nil {
		if cached, ok, err := u.streamCache.Get(ctx, pending.HosterHint, pending.SourceURL); err == nil && ok {
			return cached, nil
		}
	}
	resolved, err := u.resolvers.Resolve(ctx, pending.SourceURL, pending.HosterHint)
	if err != nil {
		return domain.ResolvedStream{}, err
	}
	if u.streamCache != nil {
		_ = u.streamCache.Set(ctx, pending.HosterHint, pending.SourceURL, resolved)
	}
	return resolved, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func encodePending(p PendingStream) []byte {
	return []byte(p.SourceURL + "\x00" + p.HosterHint)
}

func decodePending(raw []byte) (PendingStream, error) {
	parts := strings.SplitN(string(raw), "\x00", 2)
	if len(parts) != 2 {
		return PendingStream{}, fmt.Errorf("stream: malformed pending stream record")
	}
	return PendingStream{SourceURL: parts[0], HosterHint: parts[1]}, nil
}
