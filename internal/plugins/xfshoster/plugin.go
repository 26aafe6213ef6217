// Package xfshoster implements a schematic HTTP-mode plugin for an
// XFS-family file hoster's own search facility: it returns the hoster
// page URL itself as the result's source, deferring the actual
// direct-link resolution to resolver.XFSResolver at download/stream time.
package xfshoster

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/plugin"
)

type Config struct {
	Name        string
	Domains     []string
	Client      *http.Client
	SearchPath  string
	ResultPattern *regexp.Regexp // capture groups: 1=href, 2=title, 3=size hint
}

type Plugin struct {
	plugin.HTTPBase
	name          string
	searchPath    string
	resultPattern *regexp.Regexp
}

func New(cfg Config) *Plugin {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Plugin{
		HTTPBase: plugin.HTTPBase{
			Client:  client,
			Domains: cfg.Domains,
		},
		name:          cfg.Name,
		searchPath:    cfg.SearchPath,
		resultPattern: cfg.ResultPattern,
	}
}

func (p *Plugin) Descriptor() domain.PluginDescriptor {
	return domain.PluginDescriptor{
		Name:     p.name,
		Provides: "download",
		Mode:     "http",
		Domains:  p.Domains,
	}
}

func (p *Plugin) Cleanup(ctx context.Context) error { return nil }

func (p *Plugin) Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, error) {
	base, err := p.BaseURL(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Pace(ctx); err != nil {
		return nil, err
	}

	searchURL := base + fmt.Sprintf(p.searchPath, strings.ReplaceAll(strings.TrimSpace(q.Q), " ", "+"))
	fetch := p.SafeFetch(ctx, searchURL)
	if fetch.Err != nil {
		return nil, fmt.Errorf("xfshoster: %w", fetch.Err)
	}

	if p.resultPattern == nil {
		return []domain.SearchResult{}, nil
	}

	var out []domain.SearchResult
	for _, m := range p.resultPattern.FindAllSubmatch(fetch.Body, -1) {
		if len(m) < 3 {
			continue
		}
		href := string(m[1])
		if !strings.HasPrefix(href, "http") {
			href = base + href
		}
		title := strings.TrimSpace(string(m[2]))
		if title == "" {
			continue
		}
		result := domain.SearchResult{
			Title:        title,
			DownloadLink: href,
			SourceURL:    href,
		}
		if len(m) > 3 {
			result.Size = domain.ParseHumanSize(string(m[3]))
		}
		out = append(out, result)
	}
	return out, nil
}
