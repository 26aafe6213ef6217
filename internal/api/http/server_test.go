package apihttp

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/health"
	"github.com/strob0t/scavengarr/internal/plugin"
	searchusecase "github.com/strob0t/scavengarr/internal/usecase/search"
)

type fakeSearch struct {
	items    []searchusecase.Item
	cacheHit bool
	err      error
}

func (f *fakeSearch) Execute(ctx context.Context, q domain.Query) ([]searchusecase.Item, bool, error) {
	return f.items, f.cacheHit, f.err
}

type fakeStream struct {
	ranked   []domain.RankedStream
	err      error
	resolved domain.ResolvedStream
	resErr   error
}

func (f *fakeStream) Execute(ctx context.Context, imdbID string, season, episode *int) ([]domain.RankedStream, error) {
	return f.ranked, f.err
}

func (f *fakeStream) ResolvePending(ctx context.Context, streamID string) (domain.ResolvedStream, error) {
	return f.resolved, f.resErr
}

type fakePlugin struct {
	desc domain.PluginDescriptor
}

func (p *fakePlugin) Descriptor() domain.PluginDescriptor { return p.desc }
func (p *fakePlugin) Cleanup(context.Context) error       { return nil }
func (p *fakePlugin) Search(context.Context, domain.Query) ([]domain.SearchResult, error) {
	return nil, nil
}

type fakeRegistry struct {
	plugins map[string]*fakePlugin
}

func (r *fakeRegistry) Names() []string {
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	return names
}

func (r *fakeRegistry) Get(name string) (plugin.Plugin, error) {
	p, ok := r.plugins[name]
	if !ok {
		return nil, errors.New("fakeRegistry: not found")
	}
	return p, nil
}

type fakeCrawlRepo struct {
	job domain.CrawlJob
	ok  bool
}

func (f *fakeCrawlRepo) Get(ctx context.Context, jobID string) (domain.CrawlJob, bool, error) {
	return f.job, f.ok, nil
}

func newTestServer(t *testing.T, search SearchUseCase, stream StreamUseCase, registry PluginRegistry, crawlRepo CrawlJobRepository) *Server {
	t.Helper()
	return NewServer(
		WithSearchUseCase(search),
		WithStreamUseCase(stream),
		WithRegistry(registry),
		WithCrawlRepository(crawlRepo),
		WithStremioBaseURL("https://example.test"),
	)
}

func TestHandleTorznabCapsRendersXML(t *testing.T) {
	registry := &fakeRegistry{plugins: map[string]*fakePlugin{
		"example": {desc: domain.PluginDescriptor{Name: "example", Mode: "http", Categories: map[string]string{"2000": "Movies"}}},
	}}
	s := newTestServer(t, &fakeSearch{}, &fakeStream{}, registry, &fakeCrawlRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/torznab/example?t=caps", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/xml" {
		t.Fatalf("expected application/xml, got %s", ct)
	}
	var caps domain.TorznabCaps
	if err := xml.Unmarshal(rec.Body.Bytes(), &caps); err != nil {
		t.Fatalf("invalid caps xml: %v", err)
	}
}

func TestHandleTorznabSearchReturnsItems(t *testing.T) {
	registry := &fakeRegistry{plugins: map[string]*fakePlugin{
		"example": {desc: domain.PluginDescriptor{Name: "example", Mode: "http"}},
	}}
	search := &fakeSearch{
		cacheHit: true,
		items: []searchusecase.Item{
			{
				Result: domain.SearchResult{Title: "Ubuntu 22.04", DownloadLink: "https://host/file", Category: "2000"},
				JobID:  "job-123",
			},
		},
	}
	s := newTestServer(t, search, &fakeStream{}, registry, &fakeCrawlRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/torznab/example?t=search&q=ubuntu", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected X-Cache: HIT, got %q", rec.Header().Get("X-Cache"))
	}
	if !strings.Contains(rec.Body.String(), "Ubuntu 22.04") {
		t.Fatalf("expected rendered item title in body: %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/api/v1/download/job-123") {
		t.Fatalf("expected download link referencing job id: %s", rec.Body.String())
	}
}

func TestHandleTorznabSearchEmptyQueryWithoutExtendedCollapsesToEmptyFeed(t *testing.T) {
	registry := &fakeRegistry{plugins: map[string]*fakePlugin{
		"example": {desc: domain.PluginDescriptor{Name: "example", Mode: "http"}},
	}}
	search := &fakeSearch{err: errors.New("search: empty query")}
	s := newTestServer(t, search, &fakeStream{}, registry, &fakeCrawlRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/torznab/example?t=search", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("production mode must collapse errors to HTTP 200, got %d", rec.Code)
	}
}

func TestHandleDownloadServesCrawlJobFile(t *testing.T) {
	job := domain.CrawlJob{
		JobID:       "job-1",
		PackageName: "Ubuntu 22.04",
		Text:        []string{"https://host/file-a", "https://host/file-b"},
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	repo := &fakeCrawlRepo{job: job, ok: true}
	s := newTestServer(t, &fakeSearch{}, &fakeStream{}, &fakeRegistry{plugins: map[string]*fakePlugin{}}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/download/job-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-crawljob" {
		t.Fatalf("unexpected content type: %s", ct)
	}
	if rec.Header().Get("X-CrawlJob-Links") != "2" {
		t.Fatalf("expected 2 links, got %s", rec.Header().Get("X-CrawlJob-Links"))
	}
	if !strings.Contains(rec.Body.String(), "file-a") {
		t.Fatalf("expected serialized crawljob body to contain links: %s", rec.Body.String())
	}
}

func TestHandleDownloadUnknownJobIs404(t *testing.T) {
	s := newTestServer(t, &fakeSearch{}, &fakeStream{}, &fakeRegistry{plugins: map[string]*fakePlugin{}}, &fakeCrawlRepo{ok: false})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/download/missing", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleStremioManifest(t *testing.T) {
	s := newTestServer(t, &fakeSearch{}, &fakeStream{}, &fakeRegistry{plugins: map[string]*fakePlugin{}}, &fakeCrawlRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stremio/manifest.json", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "community.scavengarr") {
		t.Fatalf("expected manifest id in body: %s", rec.Body.String())
	}
}

func TestHandleStremioStreamRendersDirectAndLazyURLs(t *testing.T) {
	stream := &fakeStream{ranked: []domain.RankedStream{
		{Title: "Eager", DirectURL: "https://host/eager.mp4"},
		{Title: "Lazy", PlayURL: "pending-id-1"},
	}}
	s := newTestServer(t, &fakeSearch{}, stream, &fakeRegistry{plugins: map[string]*fakePlugin{}}, &fakeCrawlRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stremio/stream/movie/tt0371746.json", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "https://host/eager.mp4") {
		t.Fatalf("expected eager direct url in body: %s", body)
	}
	if !strings.Contains(body, "/stremio/play/pending-id-1") {
		t.Fatalf("expected lazy play url referencing PlayURL: %s", body)
	}
}

func TestHandleStremioPlayRedirectsToResolvedURL(t *testing.T) {
	stream := &fakeStream{resolved: domain.ResolvedStream{DirectURL: "https://hoster.test/direct"}}
	s := newTestServer(t, &fakeSearch{}, stream, &fakeRegistry{plugins: map[string]*fakePlugin{}}, &fakeCrawlRepo{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stremio/play/pending-id-1", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://hoster.test/direct" {
		t.Fatalf("unexpected redirect location: %s", loc)
	}
}

func TestHandleHealthzAndReadyz(t *testing.T) {
	s := newTestServer(t, &fakeSearch{}, &fakeStream{}, &fakeRegistry{plugins: map[string]*fakePlugin{}}, &fakeCrawlRepo{})

	for _, path := range []string{"/api/v1/healthz", "/api/v1/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestDrainMiddlewareRejectsDuringShutdown(t *testing.T) {
	shutdown := health.NewShutdownTracker()
	s := NewServer(
		WithSearchUseCase(&fakeSearch{}),
		WithStreamUseCase(&fakeStream{}),
		WithRegistry(&fakeRegistry{plugins: map[string]*fakePlugin{}}),
		WithCrawlRepository(&fakeCrawlRepo{}),
		WithShutdownTracker(shutdown),
	)
	shutdown.Drain(context.Background(), 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once draining, got %d", rec.Code)
	}
}
