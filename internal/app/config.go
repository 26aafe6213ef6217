// Package app holds process-wide configuration: a flat Config struct
// populated from environment variables with typed fallbacks. Precedence
// over files and CLI flags is the outer loader's concern; this package
// only consumes the resulting environment.
package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	Environment    string // "development" | "test" | "production"
	LogLevel       string
	LogFormat      string

	RequestTimeout time.Duration
	UserAgent      string
	ProxyURL       string
	DisableRedirectFollow bool

	PluginDetailConcurrency int64
	HeadlessConcurrency     int64
	HeadlessEnabled         bool
	HeadlessNavTimeout      time.Duration
	HeadlessBinPath         string
	ValidatorTimeout        time.Duration
	ValidatorConcurrency    int64

	CacheBackend   string // "memory" | "redis"
	RedisURL       string
	SearchCacheTTL time.Duration
	StreamCacheTTL time.Duration
	CrawlJobTTL    time.Duration

	StremioBaseURL string
	EagerResolveCount int
	PerPluginDeadline time.Duration

	TMDBAPIKey   string
	TMDBBaseURL  string
	TMDBCacheTTL time.Duration
	TMDBLanguage string

	JackettEndpoint  string
	JackettAPIKey    string
	ProwlarrEndpoint string
	ProwlarrAPIKey   string

	DDLSiteDomains    []string
	StreamSiteDomains []string
	XFSHosterDomains  []string
	StreamingResolverDomains []string

	ServiceName string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8090"),
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "production")),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),

		RequestTimeout:        time.Duration(getEnvInt("HTTP_CLIENT_TIMEOUT_SECONDS", 20)) * time.Second,
		UserAgent:             getEnv("HTTP_USER_AGENT", "scavengarr/1.0"),
		ProxyURL:              getEnv("HTTP_PROXY_URL", ""),
		DisableRedirectFollow: getEnvBool("HTTP_DISABLE_REDIRECTS", false),

		PluginDetailConcurrency: int64(getEnvInt("PLUGIN_DETAIL_CONCURRENCY", 3)),
		HeadlessConcurrency:     int64(getEnvInt("PLUGIN_HEADLESS_CONCURRENCY", 1)),
		HeadlessEnabled:         getEnvBool("HEADLESS_ENABLED", true),
		HeadlessNavTimeout:      time.Duration(getEnvInt("HEADLESS_NAV_TIMEOUT_SECONDS", 30)) * time.Second,
		HeadlessBinPath:         getEnv("HEADLESS_BROWSER_PATH", ""),
		ValidatorTimeout:        time.Duration(getEnvInt("LINK_VALIDATOR_TIMEOUT_SECONDS", 8)) * time.Second,
		ValidatorConcurrency:    int64(getEnvInt("LINK_VALIDATOR_CONCURRENCY", 16)),

		CacheBackend:   strings.ToLower(getEnv("CACHE_BACKEND", "memory")),
		RedisURL:       getEnv("REDIS_URL", ""),
		SearchCacheTTL: time.Duration(getEnvInt("SEARCH_CACHE_TTL_SECONDS", 900)) * time.Second,
		StreamCacheTTL: time.Duration(getEnvInt("STREAM_CACHE_TTL_SECONDS", 600)) * time.Second,
		CrawlJobTTL:    time.Duration(getEnvInt("CRAWLJOB_TTL_SECONDS", 3600)) * time.Second,

		StremioBaseURL:    getEnv("STREMIO_BASE_URL", "http://localhost:8090/api/v1"),
		EagerResolveCount: getEnvInt("STREAM_EAGER_RESOLVE_COUNT", 3),
		PerPluginDeadline: time.Duration(getEnvInt("STREAM_PER_PLUGIN_DEADLINE_SECONDS", 20)) * time.Second,

		TMDBAPIKey:   strings.TrimSpace(os.Getenv("TMDB_API_KEY")),
		TMDBBaseURL:  getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBCacheTTL: time.Duration(getEnvInt("TMDB_CACHE_TTL_DAYS", 7)) * 24 * time.Hour,
		TMDBLanguage: getEnv("TMDB_LANGUAGE", "de-DE"),

		JackettEndpoint:  strings.TrimSpace(os.Getenv("JACKETT_ENDPOINT")),
		JackettAPIKey:    strings.TrimSpace(os.Getenv("JACKETT_API_KEY")),
		ProwlarrEndpoint: strings.TrimSpace(os.Getenv("PROWLARR_ENDPOINT")),
		ProwlarrAPIKey:   strings.TrimSpace(os.Getenv("PROWLARR_API_KEY")),

		DDLSiteDomains:           getEnvCSV("DDLSITE_DOMAINS"),
		StreamSiteDomains:        getEnvCSV("STREAMSITE_DOMAINS"),
		XFSHosterDomains:         getEnvCSV("XFSHOSTER_DOMAINS"),
		StreamingResolverDomains: getEnvCSV("STREAMING_RESOLVER_DOMAINS"),

		ServiceName: getEnv("OTEL_SERVICE_NAME", "scavengarr"),
	}
}

func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvCSV(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
