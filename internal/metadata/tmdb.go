package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/strob0t/scavengarr/internal/cachekv"
)

const (
	defaultBaseURL = "https://api.themoviedb.org/3"
	cacheKeyPrefix = "tmdb:find:"
)

// TMDBResolver resolves an IMDB id to a Title via TMDB's /find endpoint
// (external_source=imdb_id). Lookups require a configured API key and
// are memoized through cachekv.Port with a long TTL, since a resolved
// title rarely changes.
type TMDBResolver struct {
	apiKey   string
	baseURL  string
	client   *http.Client
	cache    cachekv.Port
	cacheTTL time.Duration
	language string
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Cache    cachekv.Port
	CacheTTL time.Duration
	Language string
}

func NewTMDBResolver(cfg Config) *TMDBResolver {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	language := cfg.Language
	if language == "" {
		language = "de-DE"
	}
	return &TMDBResolver{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   client,
		cache:    cfg.Cache,
		cacheTTL: ttl,
		language: language,
	}
}

func (r *TMDBResolver) Enabled() bool { return r.apiKey != "" }

type findResponse struct {
	MovieResults []tmdbResult `json:"movie_results"`
	TVResults    []tmdbResult `json:"tv_results"`
}

type tmdbResult struct {
	Title        string `json:"title"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

func (r *TMDBResolver) Resolve(ctx context.Context, imdbID string) (Title, error) {
	if !r.Enabled() {
		return Title{}, fmt.Errorf("metadata: tmdb resolver not configured")
	}
	cacheKey := cacheKeyPrefix + imdbID
	if r.cache != nil {
		if raw, ok, err := r.cache.Get(ctx, cacheKey); err == nil && ok {
			var title Title
			if json.Unmarshal(raw, &title) == nil {
				return title, nil
			}
		}
	}

	params := url.Values{
		"api_key":         {r.apiKey},
		"external_source": {"imdb_id"},
		"language":        {r.language},
	}
	reqURL := fmt.Sprintf("%s/find/%s?%s", r.baseURL, url.PathEscape(imdbID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Title{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return Title{}, fmt.Errorf("metadata: tmdb find: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Title{}, fmt.Errorf("metadata: tmdb find HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return Title{}, err
	}
	var decoded findResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Title{}, fmt.Errorf("metadata: decode tmdb response: %w", err)
	}

	title, ok := firstResult(decoded)
	if !ok {
		return Title{}, fmt.Errorf("metadata: no tmdb match for %s", imdbID)
	}

	if r.cache != nil {
		if encoded, err := json.Marshal(title); err == nil {
			_ = r.cache.Set(ctx, cacheKey, encoded, r.cacheTTL)
		}
	}
	return title, nil
}

func firstResult(decoded findResponse) (Title, bool) {
	for _, r := range decoded.MovieResults {
		return toTitle(r.Title, r.OriginalName, r.ReleaseDate), true
	}
	for _, r := range decoded.TVResults {
		return toTitle(r.Name, r.OriginalName, r.FirstAirDate), true
	}
	return Title{}, false
}

func toTitle(primary, alternate, date string) Title {
	year := 0
	if len(date) >= 4 {
		for _, c := range date[:4] {
			if c < '0' || c > '9' {
				year = 0
				break
			}
			year = year*10 + int(c-'0')
		}
	}
	return Title{Primary: primary, Alternate: alternate, Year: year}
}

// SuggestResolver wraps a primary resolver with an optional secondary
// fallback so the stream use case always has exactly one collaborator
// to call, regardless of how many title sources are configured.
type SuggestResolver struct {
	Primary   Resolver
	Secondary Resolver
}

func (s *SuggestResolver) Resolve(ctx context.Context, imdbID string) (Title, error) {
	if s.Primary != nil {
		if title, err := s.Primary.Resolve(ctx, imdbID); err == nil {
			return title, nil
		}
	}
	if s.Secondary != nil {
		return s.Secondary.Resolve(ctx, imdbID)
	}
	return Title{}, fmt.Errorf("metadata: no resolver available for %s", imdbID)
}
