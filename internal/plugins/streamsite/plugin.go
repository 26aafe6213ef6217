// Package streamsite implements a schematic headless-mode plugin for a
// streaming-embed site that gates its search results behind a browser
// challenge, driving the shared headless browser pool directly instead
// of calling out to an external challenge-solving proxy.
package streamsite

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/strob0t/scavengarr/internal/browserpool"
	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/plugin"
)

type Config struct {
	Name        string
	Domains     []string
	Pool        browserpool.Pool
	SearchPath  string
	ResultPattern *regexp.Regexp // capture groups: 1=href, 2=title
	Concurrency int64
}

type Plugin struct {
	*plugin.HeadlessBase
	name          string
	domains       []string
	searchPath    string
	resultPattern *regexp.Regexp
}

func New(cfg Config) *Plugin {
	return &Plugin{
		HeadlessBase:  plugin.NewHeadlessBase(cfg.Pool, cfg.Concurrency),
		name:          cfg.Name,
		domains:       cfg.Domains,
		searchPath:    cfg.SearchPath,
		resultPattern: cfg.ResultPattern,
	}
}

func (p *Plugin) Descriptor() domain.PluginDescriptor {
	return domain.PluginDescriptor{
		Name:     p.name,
		Provides: "stream",
		Mode:     "headless",
		Domains:  p.domains,
	}
}

func (p *Plugin) Cleanup(ctx context.Context) error { return nil }

func (p *Plugin) Search(ctx context.Context, q domain.Query) ([]domain.SearchResult, error) {
	if len(p.domains) == 0 {
		return nil, fmt.Errorf("streamsite: no domains configured")
	}
	base := p.domains[0]
	searchURL := base + fmt.Sprintf(p.searchPath, strings.ReplaceAll(strings.TrimSpace(q.Q), " ", "+"))

	var out []domain.SearchResult
	err := p.WithPage(ctx, searchURL, func(page browserpool.Page) error {
		content, err := page.Content(ctx)
		if err != nil {
			return err
		}
		if p.resultPattern == nil {
			return nil
		}
		for _, m := range p.resultPattern.FindAllStringSubmatch(content, -1) {
			if len(m) < 3 {
				continue
			}
			href := m[1]
			if !strings.HasPrefix(href, "http") {
				href = base + href
			}
			title := strings.TrimSpace(m[2])
			if title == "" {
				continue
			}
			out = append(out, domain.SearchResult{
				Title:        title,
				DownloadLink: href,
				SourceURL:    href,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
