package plugin

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestSafeFetchDecodesWindows1251Body(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String("Иван Васильевич меняет профессию")
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=windows-1251")
		_, _ = w.Write([]byte(encoded))
	}))
	defer server.Close()

	base := NewHTTPBase(server.Client(), []string{server.URL}, 0)
	result := base.SafeFetch(t.Context(), server.URL)
	if result.Err != nil {
		t.Fatalf("fetch: %v", result.Err)
	}
	if !strings.Contains(string(result.Body), "Иван Васильевич") {
		t.Fatalf("expected a decoded UTF-8 body, got %q", result.Body)
	}
}

func TestSafeFetchLeavesUTF8BodyUnchanged(t *testing.T) {
	const body = "Iron Man 2008 German 1080p BluRay x264"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	base := NewHTTPBase(server.Client(), []string{server.URL}, 0)
	result := base.SafeFetch(t.Context(), server.URL)
	if result.Err != nil {
		t.Fatalf("fetch: %v", result.Err)
	}
	if string(result.Body) != body {
		t.Fatalf("expected body unchanged, got %q", result.Body)
	}
}
