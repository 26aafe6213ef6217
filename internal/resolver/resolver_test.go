package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/strob0t/scavengarr/internal/domain"
)

type stubResolver struct {
	name    string
	domains []string
	stream  domain.ResolvedStream
	err     error
}

func (s *stubResolver) Name() string              { return s.name }
func (s *stubResolver) SupportedDomains() []string { return s.domains }
func (s *stubResolver) Resolve(ctx context.Context, pageURL, hosterHint string) (domain.ResolvedStream, error) {
	return s.stream, s.err
}

func TestRegistryMatchesFirstRegisteredResolverByHostSuffixPriority(t *testing.T) {
	registry := NewRegistry(http.DefaultClient, nil)
	first := &stubResolver{name: "first", domains: []string{"example.com"}, stream: domain.ResolvedStream{DirectURL: "https://cdn/first", HeadersRequired: map[string]string{"Referer": "r", "User-Agent": "ua"}}}
	second := &stubResolver{name: "second", domains: []string{"example.com"}, stream: domain.ResolvedStream{DirectURL: "https://cdn/second", HeadersRequired: map[string]string{"Referer": "r", "User-Agent": "ua"}}}
	registry.Register(first)
	registry.Register(second)

	stream, err := registry.Resolve(context.Background(), "https://host.example.com/page", "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stream.DirectURL != "https://cdn/first" {
		t.Fatalf("expected the first-registered matching resolver to win, got %q", stream.DirectURL)
	}
}

func TestRegistryFallsBackToContentTypeProbeWhenNothingMatches(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
	}))
	defer media.Close()

	registry := NewRegistry(http.DefaultClient, nil)
	stream, err := registry.Resolve(context.Background(), media.URL, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stream.DirectURL != media.URL || stream.HosterName != "direct" {
		t.Fatalf("expected the content-type probe to treat the URL as already direct, got %+v", stream)
	}
}

func TestRegistryHosterHintTakesPrecedenceOverContentTypeProbe(t *testing.T) {
	// Serves video/*: if the probe ran despite the hint, the registry
	// would classify this as already direct instead of dispatching.
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
	}))
	defer media.Close()

	registry := NewRegistry(http.DefaultClient, nil)
	hinted := &stubResolver{name: "streamtape", domains: []string{"no-match.invalid"}, stream: domain.ResolvedStream{DirectURL: "https://cdn/hinted", HeadersRequired: map[string]string{"Referer": "r", "User-Agent": "ua"}}}
	registry.Register(hinted)

	stream, err := registry.Resolve(context.Background(), media.URL, "streamtape")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if stream.DirectURL != "https://cdn/hinted" {
		t.Fatalf("expected the hoster-hint dispatch to win over the probe, got %+v", stream)
	}
}

func TestRegistryDoesNotProbeWhenHintNamesAnUnknownResolver(t *testing.T) {
	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)
	}))
	defer media.Close()

	registry := NewRegistry(http.DefaultClient, nil)
	if _, err := registry.Resolve(context.Background(), media.URL, "nosuchhoster"); err != ErrNoResolverMatched {
		t.Fatalf("expected ErrNoResolverMatched, got %v", err)
	}
}

func TestRegistryReturnsErrNoResolverMatchedWhenEverythingMisses(t *testing.T) {
	nonMedia := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
	}))
	defer nonMedia.Close()

	registry := NewRegistry(http.DefaultClient, nil)
	_, err := registry.Resolve(context.Background(), nonMedia.URL, "")
	if err != ErrNoResolverMatched {
		t.Fatalf("expected ErrNoResolverMatched, got %v", err)
	}
}
