// Package ddlsite implements a schematic HTTP-mode plugin for a direct
// download link (DDL) indexing site: list-page pagination and per-release
// detail-page fetch for hoster mirror links. List and detail pages are
// walked as a DOM tree with golang.org/x/net/html rather than matched
// with regexp, since this kind of site's markup is rarely well-formed
// enough for a reliable pattern match. Size and title text extraction
// stay plain string/regexp work over the already-located node's text.
package ddlsite

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/plugin"
	"github.com/strob0t/scavengarr/internal/scrapeengine"
)

type Config struct {
	Name    string
	Domains []string
	Client  *http.Client

	SearchPath string // e.g. "/search/%s"

	// ListLinkClass and DetailLinkClass name the CSS class an anchor
	// carries on the list page (a link to a release's detail page) and
	// on the detail page (a link to a hoster mirror), respectively.
	ListLinkClass   string
	DetailLinkClass string

	DetailConcurrency int64

	Categories map[string]string
}

// Plugin scrapes a DDL site's search-results page for release entries,
// then fetches each release's detail page for hoster mirror links.
type Plugin struct {
	plugin.HTTPBase
	name            string
	searchPath      string
	listLinkClass   string
	detailLinkClass string
	categories      map[string]string
}

func New(cfg Config) *Plugin {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Plugin{
		HTTPBase: plugin.HTTPBase{
			Client:            client,
			Domains:           cfg.Domains,
			DetailConcurrency: cfg.DetailConcurrency,
		},
		name:            cfg.Name,
		searchPath:      cfg.SearchPath,
		listLinkClass:   cfg.ListLinkClass,
		detailLinkClass: cfg.DetailLinkClass,
		categories:      cfg.Categories,
	}
}

func (p *Plugin) Descriptor() domain.PluginDescriptor {
	return domain.PluginDescriptor{
		Name:       p.name,
		Provides:   "download",
		Mode:       "http",
		Domains:    p.Domains,
		Categories: p.categories,
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
	listURL := base + fmt.Sprintf(p.searchPath, strings.ReplaceAll(strings.TrimSpace(q.Q), " ", "+"))
	listFetch := p.SafeFetch(ctx, listURL)
	if listFetch.Err != nil {
		return nil, fmt.Errorf("ddlsite: list fetch: %w", listFetch.Err)
	}

	detailURLs := p.extractDetailURLs(base, listFetch.Body)
	if len(detailURLs) == 0 {
		return []domain.SearchResult{}, nil
	}

	var (
		mu  sync.Mutex
		out = make([]domain.SearchResult, 0, len(detailURLs))
	)
	runner := scrapeengine.NewStageRunner(p.DetailGate(), 1)
	if err := runner.Run(ctx, 1, detailURLs, func(ctx context.Context, detailURL string) error {
		result, ok := p.fetchDetail(ctx, detailURL)
		if !ok {
			return nil
		}
		mu.Lock()
		out = append(out, result)
		mu.Unlock()
		return nil
	}); err != nil {
		return out, err
	}
	return out, nil
}

// extractDetailURLs walks the list page's DOM for anchors carrying
// listLinkClass, returning their resolved href values deduplicated and in
// document order.
func (p *Plugin) extractDetailURLs(base string, body []byte) []string {
	if p.listLinkClass == "" {
		return nil
	}
	return anchorHrefsByClass(body, p.listLinkClass, base)
}

func (p *Plugin) fetchDetail(ctx context.Context, detailURL string) (domain.SearchResult, bool) {
	fetch := p.SafeFetch(ctx, detailURL)
	if fetch.Err != nil {
		return domain.SearchResult{}, false
	}

	doc, err := html.Parse(strings.NewReader(string(fetch.Body)))
	if err != nil {
		return domain.SearchResult{}, false
	}

	title := firstHeadingText(doc)
	if title == "" {
		return domain.SearchResult{}, false
	}

	var links []domain.DownloadLink
	if p.detailLinkClass != "" {
		for _, href := range anchorHrefsByClass(fetch.Body, p.detailLinkClass, "") {
			links = append(links, domain.DownloadLink{URL: href})
		}
	}
	if len(links) == 0 {
		return domain.SearchResult{}, false
	}

	return domain.SearchResult{
		Title:         title,
		DownloadLink:  links[0].URL,
		DownloadLinks: links[1:],
		SourceURL:     detailURL,
		Size:          domain.ParseHumanSize(extractSizeHint(plainText(doc))),
	}, true
}

// anchorHrefsByClass parses body as HTML and returns the href of every
// anchor whose class attribute contains class, resolved against base
// (base may be empty to keep hrefs as-is).
func anchorHrefsByClass(body []byte, class, base string) []string {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]struct{})
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode || n.DataAtom != atom.A {
			continue
		}
		if !hasClass(n, class) {
			continue
		}
		href := attrValue(n, "href")
		if href == "" {
			continue
		}
		if base != "" && !strings.HasPrefix(href, "http") {
			href = base + href
		}
		if _, ok := seen[href]; ok {
			continue
		}
		seen[href] = struct{}{}
		out = append(out, href)
	}
	return out
}

func hasClass(n *html.Node, class string) bool {
	for _, fields := range strings.Fields(attrValue(n, "class")) {
		if fields == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func firstHeadingText(doc *html.Node) string {
	for n := range doc.Descendants() {
		if n.Type == html.ElementNode && n.DataAtom == atom.H1 {
			return strings.TrimSpace(textOf(n))
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := range n.Descendants() {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func plainText(doc *html.Node) string {
	return textOf(doc)
}

var sizeHintPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?\s?(?:GB|MB|KB|TB))`)

func extractSizeHint(text string) string {
	m := sizeHintPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
