package domain

import "time"

// Query is the normalized, immutable request handed to the scraping engine.
type Query struct {
	Action      string
	PluginName  string
	Q           string
	Category    string
	Season      *int
	Episode     *int
	Extended    bool
	Offset      int
	Limit       int
}

// DownloadLink is one alternate download location for a SearchResult.
type DownloadLink struct {
	HosterHint string
	URL        string
}

// SearchResult is the normalized scrape output, mutated in place by the
// scraping engine as it dedups, validates, and promotes alternates.
type SearchResult struct {
	Title        string
	DownloadLink string

	ReleaseName           string
	Description           string
	Size                  int64
	Seeders               *int
	Leechers              *int
	PublishedDate         *time.Time
	SourceURL             string
	Category              string
	Grabs                 *int
	DownloadVolumeFactor  *float64
	UploadVolumeFactor    *float64

	DownloadLinks     []DownloadLink
	ValidatedLinks    []string
	ScrapedFromStage  string

	// InfoHash is the BitTorrent info-hash of a .torrent-backed result,
	// set only by bittorrent-style indexer adapters; used purely as a
	// cross-plugin dedup key, never surfaced to a client as a magnet URI.
	InfoHash string

	Enrichment SearchEnrichment
}

// SearchEnrichment holds release-name-derived metadata used by the stream
// use case's scoring pass (quality, language, season/episode, ...).
type SearchEnrichment struct {
	Quality     string
	Codec       string
	Source      string
	Language    string
	IsSeries    bool
	Season      int
	Episode     int
	Year        int
	HosterGuess string
}

// StageResult is the intermediate payload passed between stages of a
// plugin's scraping pipeline.
type StageResult struct {
	URL        string
	StageName  string
	Depth      int
	Data       map[string]any
	NextLinks  []string
}

// ResolvedStream is produced by a hoster resolver: a direct-playable URL
// plus the headers downstream clients must replay to avoid 403s.
type ResolvedStream struct {
	DirectURL       string
	HeadersRequired map[string]string
	ExpiresAt       *time.Time
	HosterName      string
}

// ProxyHeaders mirrors the Stremio behaviorHints.proxyHeaders.request shape.
type ProxyHeaders struct {
	Referer   string `json:"Referer,omitempty"`
	UserAgent string `json:"User-Agent,omitempty"`
}

// RankedStream is the Stremio-facing, scored candidate.
type RankedStream struct {
	Title        string
	ReleaseName  string
	Quality      string
	Language     string
	SizeBytes    *int64
	Hoster       string
	Score        float64
	PlayURL      string
	DirectURL    string
	NotWebReady  bool
	ProxyHeaders ProxyHeaders
}

// PluginDescriptor is read from each plugin once at registration time.
type PluginDescriptor struct {
	Name            string
	Provides        string // "stream" | "download"
	DefaultLanguage string
	Mode            string // "http" | "headless"
	Domains         []string
	Categories      map[string]string // torznab category code -> site tag

	// MediaTypes lists the content kinds the site actually carries
	// ("movie", "series"). Empty means both.
	MediaTypes []string
}

// SupportsMediaType reports whether the plugin carries the given content
// kind; an empty MediaTypes list means no restriction.
func (d PluginDescriptor) SupportsMediaType(mediaType string) bool {
	if len(d.MediaTypes) == 0 {
		return true
	}
	for _, t := range d.MediaTypes {
		if t == mediaType {
			return true
		}
	}
	return false
}
