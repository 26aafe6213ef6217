package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/strob0t/scavengarr/internal/domain"
)

// XFSConfig drives the parametric resolver shared by XFS-family hosters,
// which share a common URL and page structure and so need only a config
// to resolve, not a bespoke resolver each.
type XFSConfig struct {
	ResolverName   string
	Domains        []string
	FileIDPattern  *regexp.Regexp
	OfflineMarkers []string
	DirectLinkExtract *regexp.Regexp
	UserAgent      string
}

// XFSResolver is one instantiation of the parametric XFS resolver.
type XFSResolver struct {
	cfg    XFSConfig
	client *http.Client
}

func NewXFSResolver(cfg XFSConfig, client *http.Client) *XFSResolver {
	return &XFSResolver{cfg: cfg, client: client}
}

func (x *XFSResolver) Name() string               { return x.cfg.ResolverName }
func (x *XFSResolver) SupportedDomains() []string  { return x.cfg.Domains }

func (x *XFSResolver) Resolve(ctx context.Context, pageURL string, hosterHint string) (domain.ResolvedStream, error) {
	if x.cfg.FileIDPattern != nil && !x.cfg.FileIDPattern.MatchString(pageURL) {
		return domain.ResolvedStream{}, fmt.Errorf("xfs resolver %s: url does not match file-id pattern", x.cfg.ResolverName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return domain.ResolvedStream{}, err
	}
	if x.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", x.cfg.UserAgent)
	}
	resp, err := x.client.Do(req)
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("xfs resolver %s: fetch page: %w", x.cfg.ResolverName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return domain.ResolvedStream{}, fmt.Errorf("xfs resolver %s: read body: %w", x.cfg.ResolverName, err)
	}
	page := string(body)

	for _, marker := range x.cfg.OfflineMarkers {
		if marker != "" && strings.Contains(page, marker) {
			return domain.ResolvedStream{}, fmt.Errorf("xfs resolver %s: hoster reports file offline", x.cfg.ResolverName)
		}
	}

	if x.cfg.DirectLinkExtract == nil {
		return domain.ResolvedStream{}, fmt.Errorf("xfs resolver %s: no direct-link pattern configured", x.cfg.ResolverName)
	}
	match := x.cfg.DirectLinkExtract.FindStringSubmatch(page)
	if len(match) < 2 {
		return domain.ResolvedStream{}, fmt.Errorf("xfs resolver %s: direct link not found on page", x.cfg.ResolverName)
	}

	return domain.ResolvedStream{
		DirectURL: match[1],
		HeadersRequired: map[string]string{
			"Referer":    pageURL,
			"User-Agent": x.cfg.UserAgent,
		},
		HosterName: x.cfg.ResolverName,
	}, nil
}
