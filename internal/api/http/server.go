// Package apihttp implements the HTTP surface: the Torznab endpoints
// consumed by Prowlarr/Sonarr/Radarr, CrawlJob delivery for a
// folder-watching download client, the Stremio addon, and the
// liveness/stats endpoints. Handlers sit behind an otelhttp + logging +
// recovery + rate-limit + metrics middleware chain on one ServeMux.
package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/strob0t/scavengarr/internal/crawljob"
	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/health"
	"github.com/strob0t/scavengarr/internal/plugin"
	presenterstremio "github.com/strob0t/scavengarr/internal/presenter/stremio"
	presentertorznab "github.com/strob0t/scavengarr/internal/presenter/torznab"
	searchusecase "github.com/strob0t/scavengarr/internal/usecase/search"
)

// SearchUseCase is the slice of usecase/search.UseCase the server needs.
type SearchUseCase interface {
	Execute(ctx context.Context, q domain.Query) (items []searchusecase.Item, cacheHit bool, err error)
}

// StreamUseCase is the slice of usecase/stream.UseCase the server needs.
type StreamUseCase interface {
	Execute(ctx context.Context, imdbID string, season, episode *int) ([]domain.RankedStream, error)
	ResolvePending(ctx context.Context, streamID string) (domain.ResolvedStream, error)
}

// PluginRegistry is the slice of plugin.Registry the server needs.
type PluginRegistry interface {
	Names() []string
	Get(name string) (plugin.Plugin, error)
}

// CrawlJobRepository is the slice of crawljob.Repository the server needs.
type CrawlJobRepository interface {
	Get(ctx context.Context, jobID string) (domain.CrawlJob, bool, error)
}

type Server struct {
	logger   *slog.Logger
	search   SearchUseCase
	stream   StreamUseCase
	registry PluginRegistry
	crawlRepo CrawlJobRepository
	healthTracker   *health.Tracker
	shutdownTracker *health.ShutdownTracker

	developmentMode bool
	stremioBaseURL  string
	serviceName     string
	httpClient      *http.Client

	startedAt time.Time
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func WithSearchUseCase(uc SearchUseCase) ServerOption {
	return func(s *Server) { s.search = uc }
}

func WithStreamUseCase(uc StreamUseCase) ServerOption {
	return func(s *Server) { s.stream = uc }
}

func WithRegistry(registry PluginRegistry) ServerOption {
	return func(s *Server) { s.registry = registry }
}

func WithCrawlRepository(repo CrawlJobRepository) ServerOption {
	return func(s *Server) { s.crawlRepo = repo }
}

func WithHealthTracker(tracker *health.Tracker) ServerOption {
	return func(s *Server) { s.healthTracker = tracker }
}

func WithShutdownTracker(tracker *health.ShutdownTracker) ServerOption {
	return func(s *Server) { s.shutdownTracker = tracker }
}

func WithDevelopmentMode(dev bool) ServerOption {
	return func(s *Server) { s.developmentMode = dev }
}

func WithStremioBaseURL(baseURL string) ServerOption {
	return func(s *Server) { s.stremioBaseURL = strings.TrimRight(baseURL, "/") }
}

func WithServiceName(name string) ServerOption {
	return func(s *Server) { s.serviceName = name }
}

func WithHTTPClient(client *http.Client) ServerOption {
	return func(s *Server) { s.httpClient = client }
}

func NewServer(options ...ServerOption) *Server {
	s := &Server{
		logger:      slog.Default(),
		serviceName: "scavengarr",
		httpClient:  &http.Client{Timeout: 5 * time.Second},
		startedAt:   time.Now(),
	}
	for _, opt := range options {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/torznab/indexers", s.handleIndexers)
	mux.HandleFunc("GET /api/v1/torznab/{plugin}/health", s.handleTorznabHealth)
	mux.HandleFunc("GET /api/v1/torznab/{plugin}", s.handleTorznab)

	mux.HandleFunc("GET /api/v1/download/{job_id}/info", s.handleDownloadInfo)
	mux.HandleFunc("GET /api/v1/download/{job_id}", s.handleDownload)

	mux.HandleFunc("GET /api/v1/stremio/manifest.json", s.handleStremioManifest)
	mux.HandleFunc("GET /api/v1/stremio/catalog/{type}/{idJSON}", s.handleStremioCatalog)
	mux.HandleFunc("GET /api/v1/stremio/stream/{type}/{idJSON}", s.handleStremioStream)
	mux.HandleFunc("GET /api/v1/stremio/play/{stream_id}", s.handleStremioPlay)

	mux.HandleFunc("GET /api/v1/healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/v1/readyz", s.handleReadyz)
	mux.HandleFunc("GET /api/v1/stats/metrics", s.handleStatsMetrics)
	mux.HandleFunc("GET /api/v1/stats/plugin-scores", s.handleStatsPluginScores)

	mux.Handle("/metrics", promhttp.Handler())

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), s.serviceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/api/v1/healthz" && p != "/api/v1/readyz"
		}),
	)
	return s.drainMiddleware(recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, metricsMiddleware(traced))))
}

// drainMiddleware rejects new work with 503 once graceful shutdown has
// begun, and tracks in-flight requests so Drain knows when it is safe to
// stop waiting.
func (s *Server) drainMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.shutdownTracker == nil {
			next.ServeHTTP(w, r)
			return
		}
		if !s.shutdownTracker.Begin() {
			writeError(w, http.StatusServiceUnavailable, "shutting_down", "server is shutting down")
			return
		}
		defer s.shutdownTracker.End()
		next.ServeHTTP(w, r)
	})
}

// --- Torznab ---

func (s *Server) handleIndexers(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	indexers := make([]domain.IndexerInfo, 0, len(names))
	for _, name := range names {
		p, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		desc := p.Descriptor()
		indexers = append(indexers, domain.IndexerInfo{Name: desc.Name, Mode: desc.Mode})
	}
	writeJSON(w, http.StatusOK, map[string]any{"indexers": indexers})
}

func (s *Server) handleTorznabHealth(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("plugin")
	p, err := s.registry.Get(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown plugin")
		return
	}
	desc := p.Descriptor()
	results := make([]map[string]any, 0, len(desc.Domains))
	anyReachable := false
	for i, domainURL := range desc.Domains {
		reachable := s.probeReachable(r.Context(), domainURL)
		if reachable {
			anyReachable = true
		}
		results = append(results, map[string]any{
			"domain":    domainURL,
			"primary":   i == 0,
			"reachable": reachable,
		})
	}
	status := http.StatusOK
	if !anyReachable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"plugin":  name,
		"healthy": anyReachable,
		"domains": results,
	})
}

func (s *Server) probeReachable(ctx context.Context, rawURL string) bool {
	target := rawURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, target, nil)
	if err != nil {
		return false
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

func (s *Server) handleTorznab(w http.ResponseWriter, r *http.Request) {
	pluginName := r.PathValue("plugin")
	action := r.URL.Query().Get("t")

	switch action {
	case "caps":
		s.handleTorznabCaps(w, r, pluginName)
	case "search", "":
		s.handleTorznabSearch(w, r, pluginName)
	default:
		s.torznabError(w, http.StatusBadRequest, errors.New("unsupported t parameter"))
	}
}

func (s *Server) handleTorznabCaps(w http.ResponseWriter, r *http.Request, pluginName string) {
	p, err := s.registry.Get(pluginName)
	if err != nil {
		s.torznabError(w, http.StatusNotFound, err)
		return
	}
	desc := p.Descriptor()
	categories := make([]domain.TorznabCategory, 0, len(desc.Categories))
	for code, tag := range desc.Categories {
		categories = append(categories, domain.TorznabCategory{ID: code, Name: tag})
	}
	out, err := presentertorznab.RenderCaps(domain.IndexerInfo{Name: desc.Name, Version: "1.0", Mode: desc.Mode}, categories)
	if err != nil {
		s.torznabError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(out)
}

func (s *Server) handleTorznabSearch(w http.ResponseWriter, r *http.Request, pluginName string) {
	q := r.URL.Query()
	extended := q.Get("extended") == "1"
	query := domain.Query{
		Action:     "search",
		PluginName: pluginName,
		Q:          q.Get("q"),
		Category:   q.Get("cat"),
		Extended:   extended,
		Offset:     atoiDefault(q.Get("offset"), 0),
		Limit:      atoiDefault(q.Get("limit"), 100),
	}

	if strings.TrimSpace(query.Q) == "" && extended {
		s.handleExtendedProbe(w, r, pluginName)
		return
	}

	items, cacheHit, err := s.search.Execute(r.Context(), query)
	if err != nil {
		s.torznabError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if cacheHit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}

	torznabItems := make([]domain.TorznabItem, 0, len(items))
	for _, it := range items {
		torznabItems = append(torznabItems, toTorznabItem(it))
	}
	out, err := presentertorznab.RenderResults(s.serviceName, torznabItems)
	if err != nil {
		s.torznabError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(out)
}

func (s *Server) handleExtendedProbe(w http.ResponseWriter, r *http.Request, pluginName string) {
	p, err := s.registry.Get(pluginName)
	if err != nil {
		s.torznabError(w, http.StatusNotFound, err)
		return
	}
	desc := p.Descriptor()
	reachable := false
	for _, d := range desc.Domains {
		if s.probeReachable(r.Context(), d) {
			reachable = true
			break
		}
	}
	if !reachable {
		s.torznabError(w, http.StatusServiceUnavailable, fmt.Errorf("no reachable domain for %s", pluginName))
		return
	}
	probe := presentertorznab.ExtendedProbeItem()
	probe.Title = fmt.Sprintf("%s test", pluginName)
	out, err := presentertorznab.RenderResults(s.serviceName, []domain.TorznabItem{probe})
	if err != nil {
		s.torznabError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(out)
}

// torznabError collapses any failure to an empty, well-formed feed with
// HTTP 200 in production, so upstream indexer managers never disable the
// source. Development mode surfaces the real status code instead.
func (s *Server) torznabError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("torznab request failed", slog.String("error", err.Error()), slog.Int("status", status))
	if s.developmentMode {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		out, _ := presentertorznab.RenderResults(s.serviceName, nil)
		_, _ = w.Write(out)
		return
	}
	out, _ := presentertorznab.RenderResults(s.serviceName, nil)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func toTorznabItem(item searchusecase.Item) domain.TorznabItem {
	r := item.Result
	title := r.ReleaseName
	if title == "" {
		title = r.Title
	}
	it := domain.TorznabItem{
		Title:         title,
		GUID:          r.DownloadLink,
		Link:          "/api/v1/download/" + item.JobID,
		Comments:      r.SourceURL,
		EnclosureURL:  "/api/v1/download/" + item.JobID,
		EnclosureType: "application/x-crawljob",
		Category:      r.Category,
		Seeders:       r.Seeders,
		Peers:         r.Leechers,
		Grabs:         r.Grabs,
		DownloadVolumeFactor: r.DownloadVolumeFactor,
		UploadVolumeFactor:   r.UploadVolumeFactor,
	}
	if r.Size > 0 {
		size := r.Size
		it.SizeBytes = &size
	}
	if r.PublishedDate != nil {
		it.PubDate = *r.PublishedDate
	}
	return it
}

func atoiDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// --- CrawlJob delivery ---

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	job, ok, err := s.crawlRepo.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "crawljob lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown or expired job id")
		return
	}

	body := crawljob.Serialize(job)
	safeName := safeFilename(job.PackageName)

	w.Header().Set("Content-Type", "application/x-crawljob")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.crawljob"`, safeName, job.JobID))
	w.Header().Set("X-CrawlJob-ID", job.JobID)
	w.Header().Set("X-CrawlJob-Package", job.PackageName)
	w.Header().Set("X-CrawlJob-Links", strconv.Itoa(len(job.Text)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleDownloadInfo(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	job, ok, err := s.crawlRepo.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "crawljob lookup failed")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown or expired job id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":       job.JobID,
		"packageName": job.PackageName,
		"filename":    job.Filename,
		"linkCount":   len(job.Text),
		"sourceUrl":   job.SourceURL,
		"createdAt":   job.CreatedAt,
		"expiresAt":   job.ExpiresAt,
	})
}

func safeFilename(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "scavengarr_download"
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" {
		return "scavengarr_download"
	}
	if len(name) > 80 {
		name = name[:80]
	}
	return name
}

// --- Stremio ---

func (s *Server) handleStremioManifest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presenterstremio.BuildManifest("community.scavengarr", "Scavengarr", "1.0.0"))
}

// handleStremioCatalog is a passthrough stub: catalog/search against
// TMDB/IMDB metadata lives in an external service, so this endpoint
// exists for addon-shape compatibility and returns an empty catalog
// rather than performing a metadata search.
func (s *Server) handleStremioCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"metas": []any{}})
}

func (s *Server) handleStremioStream(w http.ResponseWriter, r *http.Request) {
	idJSON := r.PathValue("idJSON")
	id := strings.TrimSuffix(idJSON, ".json")

	imdbID, season, episode := parseStremioID(id)
	if imdbID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed stream id")
		return
	}

	ranked, err := s.stream.Execute(r.Context(), imdbID, season, episode)
	if err != nil {
		s.logger.Warn("stream use case failed", slog.String("imdbId", imdbID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, domain.StremioStreamResponse{})
		return
	}
	resp := presenterstremio.RenderStreams(s.stremioBaseURL, ranked)
	writeJSON(w, http.StatusOK, resp)
}

// parseStremioID splits a Stremio stream id of the form
// "tt0371746", "tt0371746:1:2" (season/episode) into its parts.
func parseStremioID(id string) (imdbID string, season, episode *int) {
	parts := strings.Split(id, ":")
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "tt") {
		return "", nil, nil
	}
	imdbID = parts[0]
	if len(parts) >= 3 {
		if s, err := strconv.Atoi(parts[1]); err == nil {
			season = &s
		}
		if e, err := strconv.Atoi(parts[2]); err == nil {
			episode = &e
		}
	}
	return imdbID, season, episode
}

func (s *Server) handleStremioPlay(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("stream_id")
	resolved, err := s.stream.ResolvePending(r.Context(), streamID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "unknown or expired stream id")
		return
	}
	if resolved.DirectURL == "" {
		writeError(w, http.StatusBadGateway, "upstream_error", "hoster resolution failed")
		return
	}
	w.Header().Set("Location", resolved.DirectURL)
	w.WriteHeader(http.StatusFound)
}

// --- Liveness, readiness, stats ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleReadyz only runs while drainMiddleware still admits requests, so
// reaching this handler at all already means the server isn't draining.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleStatsMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":         s.serviceName,
		"uptimeSeconds":   time.Since(s.startedAt).Seconds(),
		"pluginCount":     len(s.registry.Names()),
		"goroutines":      runtime.NumGoroutine(),
	})
}

func (s *Server) handleStatsPluginScores(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	scores := make([]domain.PluginScore, 0, len(names))
	diagnostics := make([]domain.PluginDiagnostics, 0, len(names))
	for _, name := range names {
		score := domain.PluginScore{Name: name, State: "unknown"}
		diag := domain.PluginDiagnostics{Name: name, Enabled: true}
		if p, err := s.registry.Get(name); err == nil {
			desc := p.Descriptor()
			diag.Mode = desc.Mode
			diag.Mirrors = desc.Domains
			if len(desc.Domains) > 0 {
				diag.ActiveDomain = desc.Domains[0]
			}
		}
		if s.healthTracker != nil {
			snap := s.healthTracker.Snapshot(name)
			score.State = string(snap.State)
			score.Attempts = snap.TotalRequests
			score.Successes = snap.TotalRequests - snap.TotalFailures
			score.Timeouts = snap.TimeoutCount
			score.Errors = snap.TotalFailures
			score.EWMALatencyMS = snap.EWMALatencyMS

			diag.Enabled = snap.State != health.StateOpen
			diag.ConsecutiveFailures = snap.ConsecutiveFailures
			diag.BlockedUntil = snap.BlockedUntil
			diag.LastError = snap.LastError
			diag.LastSuccessAt = snap.LastSuccessAt
			diag.LastFailureAt = snap.LastFailureAt
			diag.LastLatencyMS = snap.LastLatency.Milliseconds()
			diag.LastTimeout = snap.LastTimeout
			diag.TotalRequests = snap.TotalRequests
			diag.TotalFailures = snap.TotalFailures
			diag.TimeoutCount = snap.TimeoutCount
		}
		scores = append(scores, score)
		diagnostics = append(diagnostics, diag)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scores":      scores,
		"diagnostics": diagnostics,
	})
}

// --- shared response helpers ---

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
