// Package torznabindexer implements an HTTP-mode plugin fronting an
// upstream Torznab-compatible indexer (Jackett, Prowlarr, or a native
// Torznab tracker). It only ever hands the scraping engine an HTTP(S)
// download URL, never a magnet URI. Where an upstream enclosure is
// itself a .torrent file (a bittorrent-style indexer), its info-hash is
// still computed server-side as a cross-plugin dedup key via
// releaseparse.InfoHashFromTorrent.
package torznabindexer

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/strob0t/scavengarr/internal/domain"
	"github.com/strob0t/scavengarr/internal/plugin"
	"github.com/strob0t/scavengarr/internal/releaseparse"
)

const defaultUserAgent = "scavengarr/1.0"

type Config struct {
	Name      string
	Endpoint  string
	APIKey    string
	Client    *http.Client
	Domains   []string
	Categories map[string]string
}

type Plugin struct {
	plugin.HTTPBase
	name       string
	endpoint   string
	apiKey     string
	categories map[string]string
}

func New(cfg Config) *Plugin {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	domains := cfg.Domains
	if len(domains) == 0 {
		domains = []string{cfg.Endpoint}
	}
	return &Plugin{
		HTTPBase: plugin.HTTPBase{
			Client:  client,
			Domains: domains,
		},
		name:       cfg.Name,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		categories: cfg.Categories,
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
	uri, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("torznabindexer: invalid endpoint: %w", err)
	}
	query := uri.Query()
	query.Set("t", "search")
	query.Set("q", strings.TrimSpace(q.Q))
	query.Set("extended", "1")
	if p.apiKey != "" {
		query.Set("apikey", p.apiKey)
	}
	if q.Category != "" {
		query.Set("cat", q.Category)
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		query.Set("offset", strconv.Itoa(q.Offset))
	}
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xml,text/xml,application/rss+xml")

	if err := p.Pace(ctx); err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torznabindexer: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("torznabindexer: upstream HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	items, err := parseResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("torznabindexer: %w", err)
	}

	out := make([]domain.SearchResult, 0, len(items))
	for _, item := range items {
		result, ok := toSearchResult(item)
		if !ok {
			continue
		}
		if strings.EqualFold(item.Enclosure.Type, "application/x-bittorrent") {
			if hash, err := p.infoHashOf(ctx, result.DownloadLink); err == nil {
				result.InfoHash = hash
			}
		}
		out = append(out, result)
	}
	return out, nil
}

// infoHashOf fetches a bittorrent-style indexer's .torrent enclosure and
// computes its info-hash, used purely as a cross-indexer dedup key (see
// releaseparse.InfoHashFromTorrent).
func (p *Plugin) infoHashOf(ctx context.Context, torrentURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, torrentURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("torznabindexer: torrent fetch HTTP %d", resp.StatusCode)
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", err
	}
	return releaseparse.InfoHashFromTorrent(payload)
}

type rssResponse struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title     string `xml:"title"`
	GUID      string `xml:"guid"`
	Link      string `xml:"link"`
	Comments  string `xml:"comments"`
	PubDate   string `xml:"pubDate"`
	Enclosure struct {
		URL    string `xml:"url,attr"`
		Length int64  `xml:"length,attr"`
		Type   string `xml:"type,attr"`
	} `xml:"enclosure"`
	Attrs []struct {
		Name  string `xml:"name,attr"`
		Value string `xml:"value,attr"`
	} `xml:"attr"`
}

func parseResponse(payload []byte) ([]rssItem, error) {
	var rss rssResponse
	if err := xml.Unmarshal(payload, &rss); err != nil {
		return nil, fmt.Errorf("invalid torznab XML: %w", err)
	}
	return rss.Channel.Items, nil
}

func toSearchResult(item rssItem) (domain.SearchResult, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.SearchResult{}, false
	}

	downloadLink := strings.TrimSpace(item.Enclosure.URL)
	if downloadLink == "" {
		downloadLink = strings.TrimSpace(item.Link)
	}
	if downloadLink == "" || strings.HasPrefix(strings.ToLower(downloadLink), "magnet:") {
		return domain.SearchResult{}, false
	}

	attrs := make(map[string]string, len(item.Attrs))
	for _, a := range item.Attrs {
		key := strings.ToLower(strings.TrimSpace(a.Name))
		if key == "" {
			continue
		}
		if _, exists := attrs[key]; !exists {
			attrs[key] = strings.TrimSpace(a.Value)
		}
	}

	size := item.Enclosure.Length
	if size <= 0 {
		size = domain.ParseHumanSize(attrs["size"])
	}

	var seeders, leechers *int
	if v, err := strconv.Atoi(attrs["seeders"]); err == nil {
		seeders = &v
	}
	if v, err := strconv.Atoi(attrs["peers"]); err == nil && seeders != nil {
		l := v - *seeders
		if l < 0 {
			l = 0
		}
		leechers = &l
	}

	var published *time.Time
	if t := parsePubDate(item.PubDate); t != nil {
		published = t
	}

	sourceURL := strings.TrimSpace(item.Comments)
	if sourceURL == "" {
		sourceURL = strings.TrimSpace(item.GUID)
	}

	return domain.SearchResult{
		Title:         title,
		DownloadLink:  downloadLink,
		SourceURL:     sourceURL,
		Size:          size,
		Seeders:       seeders,
		Leechers:      leechers,
		PublishedDate: published,
	}, true
}

func parsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	formats := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC3339}
	for _, f := range formats {
		if t, err := time.Parse(f, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
