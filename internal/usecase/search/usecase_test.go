package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/strob0t/scavengarr/internal/cachekv"
	"github.com/strob0t/scavengarr/internal/crawljob"
	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/linkvalidator"
	"github.com/strob0t/scavengarr/internal/plugin"
	"github.com/strob0t/scavengarr/internal/scrapeengine"
)

type fakePlugin struct {
	calls   int
	results []domain.SearchResult
}

func (f *fakePlugin) Descriptor() domain.PluginDescriptor { return domain.PluginDescriptor{Name: "example"} }
func (f *fakePlugin) Cleanup(context.Context) error        { return nil }
func (f *fakePlugin) Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, error) {
	f.calls++
	return f.results, nil
}

func setup(t *testing.T, liveURL string) (*UseCase, *fakePlugin) {
	t.Helper()
	registry := plugin.NewRegistry()
	fp := &fakePlugin{results: []domain.SearchResult{
		{Title: "Ubuntu 22.04", DownloadLink: liveURL},
	}}
	if err := registry.Discover("example", func() (plugin.Plugin, error) { return fp, nil }); err != nil {
		t.Fatalf("discover: %v", err)
	}

	validator := linkvalidator.New(http.DefaultClient, 4)
	engine := scrapeengine.New(validator, nil)
	cache := cachekv.NewMemoryBackend(8)
	t.Cleanup(func() { _ = cache.Close() })
	factory := crawljob.NewFactory(time.Hour)
	repo := crawljob.NewRepository(cache)

	return New(registry, engine, cache, factory, repo, nil), fp
}

func TestExecuteBasicSearchHit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uc, _ := setup(t, server.URL+"/file/A")
	items, hit, err := uc.Execute(context.Background(), domain.Query{Action: "search", PluginName: "example", Q: "ubuntu"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if hit {
		t.Fatalf("expected a cache miss on first call")
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].JobID == "" {
		t.Fatalf("expected a job id to be assigned")
	}
	if items[0].Result.DownloadLink != server.URL+"/file/A" {
		t.Fatalf("unexpected download link: %s", items[0].Result.DownloadLink)
	}
}

func TestExecuteCacheHitSkipsPlugin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uc, fp := setup(t, server.URL+"/file/A")
	ctx := context.Background()
	q := domain.Query{Action: "search", PluginName: "example", Q: "ubuntu"}

	if _, _, err := uc.Execute(ctx, q); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if fp.calls != 1 {
		t.Fatalf("expected 1 plugin call, got %d", fp.calls)
	}

	items, hit, err := uc.Execute(ctx, q)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if !hit {
		t.Fatalf("expected a cache hit on second call")
	}
	if fp.calls != 1 {
		t.Fatalf("plugin.Search should not run again on a cache hit, got %d calls", fp.calls)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 cached item, got %d", len(items))
	}
}

func TestExecuteRejectsEmptyQueryWithoutExtended(t *testing.T) {
	uc, _ := setup(t, "https://example.invalid/a")
	_, _, err := uc.Execute(context.Background(), domain.Query{Action: "search", PluginName: "example", Q: ""})
	if err == nil {
		t.Fatalf("expected an error for empty q without extended=1")
	}
}

func TestExecuteStaleHitTriggersBackgroundRefreshWithoutBlocking(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	uc, fp := setup(t, server.URL+"/file/A")
	uc.WithCacheTTL(time.Millisecond).WithStaleTTL(time.Hour)
	ctx := context.Background()
	q := domain.Query{Action: "search", PluginName: "example", Q: "ubuntu"}

	if _, _, err := uc.Execute(ctx, q); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if fp.calls != 1 {
		t.Fatalf("expected 1 plugin call after the initial miss, got %d", fp.calls)
	}

	time.Sleep(5 * time.Millisecond)

	items, hit, err := uc.Execute(ctx, q)
	if err != nil {
		t.Fatalf("stale-hit execute: %v", err)
	}
	if !hit {
		t.Fatalf("expected a stale cache hit to still report cacheHit=true")
	}
	if len(items) != 1 {
		t.Fatalf("expected the stale cached item to be served immediately, got %d", len(items))
	}

	deadline := time.Now().Add(time.Second)
	for fp.calls < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if fp.calls != 2 {
		t.Fatalf("expected the background refresh to invoke the plugin a second time, got %d calls", fp.calls)
	}
}

func TestFingerprintIgnoresUnrelatedFields(t *testing.T) {
	a := Fingerprint(domain.Query{PluginName: "example", Q: "ubuntu", Category: "2000", Offset: 0})
	b := Fingerprint(domain.Query{PluginName: "example", Q: "ubuntu", Category: "2000", Offset: 20})
	if a != b {
		t.Fatalf("fingerprint should be insensitive to offset: %s != %s", a, b)
	}
	c := Fingerprint(domain.Query{PluginName: "example", Q: "other", Category: "2000"})
	if a == c {
		t.Fatalf("fingerprint should change with q")
	}
}
