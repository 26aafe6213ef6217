// Package resolver implements the hoster resolver registry: turns a
// hoster embed/page URL into a domain.ResolvedStream. Resolvers must
// emit Referer/User-Agent on success so a player can replay them — most
// hosters 403 a direct link fetched without them.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/strob0t/scavengarr/internal/domain"
)

var ErrNoResolverMatched = errors.New("resolver: no resolver matched and content-type probe was inconclusive")

// Resolver resolves one hoster's page URL into a direct stream.
type Resolver interface {
	Name() string
	SupportedDomains() []string
	Resolve(ctx context.Context, pageURL string, hosterHint string) (domain.ResolvedStream, error)
}

type registered struct {
	resolver Resolver
	order    int
}

// Registry matches by host suffix in registration-priority order (ties
// broken by registration order), with a content-type probe fallback.
type Registry struct {
	client    *http.Client
	logger    *slog.Logger
	resolvers []registered
}

func NewRegistry(client *http.Client, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{client: client, logger: logger}
}

func (r *Registry) Register(res Resolver) {
	r.resolvers = append(r.resolvers, registered{resolver: res, order: len(r.resolvers)})
}

// Resolve follows redirects for canonicalization, then dispatches by host
// suffix; unmatched URLs fall back to the plugin-provided hoster hint, and
// only when no hint is given to a content-type probe.
func (r *Registry) Resolve(ctx context.Context, pageURL string, hosterHint string) (domain.ResolvedStream, error) {
	canonical := r.canonicalize(ctx, pageURL)
	host := hostOf(canonical)

	if match := r.matchByHost(host); match != nil {
		stream, err := match.Resolve(ctx, canonical, hosterHint)
		if err == nil {
			r.warnIfHeadersMissing(match.Name(), stream)
		}
		return stream, err
	}

	// A plugin-provided hint names the real hoster behind a rotating
	// alias domain; when present it takes precedence over the probe.
	if hosterHint != "" {
		if match := r.matchByName(hosterHint); match != nil {
			stream, err := match.Resolve(ctx, canonical, hosterHint)
			if err == nil {
				r.warnIfHeadersMissing(match.Name(), stream)
			}
			return stream, err
		}
		return domain.ResolvedStream{}, ErrNoResolverMatched
	}

	if isDirectMedia(ctx, r.client, canonical) {
		return domain.ResolvedStream{
			DirectURL:       canonical,
			HeadersRequired: map[string]string{},
			HosterName:      "direct",
		}, nil
	}

	return domain.ResolvedStream{}, ErrNoResolverMatched
}

func (r *Registry) matchByHost(host string) Resolver {
	candidates := make([]registered, 0, len(r.resolvers))
	for _, entry := range r.resolvers {
		for _, domainSuffix := range entry.resolver.SupportedDomains() {
			if strings.HasSuffix(host, strings.ToLower(domainSuffix)) {
				candidates = append(candidates, entry)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })
	return candidates[0].resolver
}

func (r *Registry) matchByName(name string) Resolver {
	for _, entry := range r.resolvers {
		if strings.EqualFold(entry.resolver.Name(), name) {
			return entry.resolver
		}
	}
	return nil
}

func (r *Registry) canonicalize(ctx context.Context, rawURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return rawURL
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return rawURL
	}
	defer resp.Body.Close()
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return rawURL
}

func (r *Registry) warnIfHeadersMissing(name string, stream domain.ResolvedStream) {
	if stream.HeadersRequired["Referer"] == "" || stream.HeadersRequired["User-Agent"] == "" {
		r.logger.Warn("resolver emitted stream without replay headers",
			slog.String("resolver", name), slog.String("url", stream.DirectURL))
	}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

func isDirectMedia(ctx context.Context, client *http.Client, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	contentType := resp.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "video/") ||
		strings.Contains(contentType, "mpegurl") ||
		strings.Contains(contentType, "dash+xml")
}
