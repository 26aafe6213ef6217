package scrapeengine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/linkvalidator"
)

type fakePlugin struct {
	calls   []string
	narrow  []domain.SearchResult
	widened []domain.SearchResult
}

func (f *fakePlugin) Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, error) {
	f.calls = append(f.calls, q.Q)
	if q.Q == "ubuntu" {
		return f.widened, nil
	}
	return f.narrow, nil
}

func newEngine(t *testing.T, liveURL string) *Engine {
	t.Helper()
	validator := linkvalidator.New(http.DefaultClient, 4)
	return New(validator, nil)
}

func TestSearchExpandsThinNarrowQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fp := &fakePlugin{
		narrow: []domain.SearchResult{
			{Title: "Ubuntu 22.04 LTS Desktop", DownloadLink: server.URL + "/a"},
		},
		widened: []domain.SearchResult{
			{Title: "Ubuntu 22.04 LTS Desktop", DownloadLink: server.URL + "/a"},
			{Title: "Ubuntu 22.04 LTS Server", DownloadLink: server.URL + "/b"},
		},
	}
	e := newEngine(t, server.URL)

	results, err := e.Search(context.Background(), fp, domain.Query{Q: "ubuntu desktop"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(fp.calls) != 2 {
		t.Fatalf("expected a narrow call followed by one expansion call, got %v", fp.calls)
	}
	if fp.calls[0] != "ubuntu desktop" || fp.calls[1] != "ubuntu" {
		t.Fatalf("unexpected call sequence: %v", fp.calls)
	}
	if len(results) != 2 {
		t.Fatalf("expected both the narrow and the widened result after dedup, got %d", len(results))
	}
}

func TestSearchSkipsExpansionWhenNarrowResultsAreSufficient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fp := &fakePlugin{
		narrow: []domain.SearchResult{
			{Title: "A", DownloadLink: server.URL + "/a"},
			{Title: "B", DownloadLink: server.URL + "/b"},
			{Title: "C", DownloadLink: server.URL + "/c"},
		},
	}
	e := newEngine(t, server.URL)

	if _, err := e.Search(context.Background(), fp, domain.Query{Q: "enough results already"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(fp.calls) != 1 {
		t.Fatalf("expected no expansion call once the narrow query already clears the threshold, got %v", fp.calls)
	}
}

func TestSearchSkipsExpansionForSingleWordQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	fp := &fakePlugin{
		narrow: []domain.SearchResult{
			{Title: "Solo", DownloadLink: server.URL + "/a"},
		},
	}
	e := newEngine(t, server.URL)

	if _, err := e.Search(context.Background(), fp, domain.Query{Q: "solo"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(fp.calls) != 1 {
		t.Fatalf("a single-word query has no further token to drop, expected no expansion call, got %v", fp.calls)
	}
}
