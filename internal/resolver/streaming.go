package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/strob0t/scavengarr/internal/browserpool"
	"github.com/strob0t/scavengarr/internal/domain"
)

// m3u8Pattern extracts an HLS manifest URL from an embed page's inline
// script, the common shape for streaming embeds (e.g. VOE-style hosts).
var m3u8Pattern = regexp.MustCompile(`(https?://[^"'\\\s]+\.m3u8[^"'\\\s]*)`)

// StreamingResolver handles a single embed-style streaming hoster: it
// first fetches the embed page directly and scans it for an m3u8 URL,
// falling back to the headless pool for stubborn Cloudflare challenges.
type StreamingResolver struct {
	name    string
	domains []string
	client  *http.Client
	pool    browserpool.Pool
	userAgent string
}

func NewStreamingResolver(name string, domains []string, client *http.Client, pool browserpool.Pool, userAgent string) *StreamingResolver {
	return &StreamingResolver{name: name, domains: domains, client: client, pool: pool, userAgent: userAgent}
}

func (s *StreamingResolver) Name() string              { return s.name }
func (s *StreamingResolver) SupportedDomains() []string { return s.domains }

func (s *StreamingResolver) Resolve(ctx context.Context, pageURL string, hosterHint string) (domain.ResolvedStream, error) {
	if direct, ok := s.resolveViaFetch(ctx, pageURL); ok {
		return direct, nil
	}
	return s.resolveViaHeadless(ctx, pageURL)
}

func (s *StreamingResolver) resolveViaFetch(ctx context.Context, pageURL string) (domain.ResolvedStream, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.ResolvedStream{}, false
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.ResolvedStream{}, false
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.ResolvedStream{}, false
	}

	match := m3u8Pattern.FindStringSubmatch(string(body))
	if len(match) < 2 {
		return domain.ResolvedStream{}, false
	}
	return domain.ResolvedStream{
		DirectURL: match[1],
		HeadersRequired: map[string]string{
			"Referer":    pageURL,
			"User-Agent": s.userAgent,
		},
		HosterName: s.name,
	}, true
}

func (s *StreamingResolver) resolveViaHeadless(ctx context.Context, pageURL string) (domain.ResolvedStream, error) {
	page, err := s.pool.NewPage(ctx)
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("streaming resolver %s: acquire page: %w", s.name, err)
	}
	defer page.Close()

	if err := page.Navigate(ctx, pageURL); err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("streaming resolver %s: %w", s.name, browserpool.ErrChallenge)
	}
	if err := page.WaitForNetworkIdle(ctx); err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("streaming resolver %s: network idle wait: %w", s.name, err)
	}
	content, err := page.Content(ctx)
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("streaming resolver %s: read content: %w", s.name, err)
	}
	match := m3u8Pattern.FindStringSubmatch(content)
	if len(match) < 2 {
		return domain.ResolvedStream{}, fmt.Errorf("streaming resolver %s: no manifest found after render", s.name)
	}
	return domain.ResolvedStream{
		DirectURL: match[1],
		HeadersRequired: map[string]string{
			"Referer":    pageURL,
			"User-Agent": s.userAgent,
		},
		HosterName: s.name,
	}, nil
}
