package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "github.com/strob0t/scavengarr/internal/api/http"
	"github.com/strob0t/scavengarr/internal/app"
	"github.com/strob0t/scavengarr/internal/browserpool"
	"github.com/strob0t/scavengarr/internal/cachekv"
	"github.com/strob0t/scavengarr/internal/crawljob"
	"github.com/strob0t/scavengarr/internal/health"
	"github.com/strob0t/scavengarr/internal/httpclient"
	"github.com/strob0t/scavengarr/internal/linkvalidator"
	"github.com/strob0t/scavengarr/internal/metadata"
	"github.com/strob0t/scavengarr/internal/metrics"
	"github.com/strob0t/scavengarr/internal/plugin"
	"github.com/strob0t/scavengarr/internal/plugins/ddlsite"
	"github.com/strob0t/scavengarr/internal/plugins/streamsite"
	"github.com/strob0t/scavengarr/internal/plugins/torznabindexer"
	"github.com/strob0t/scavengarr/internal/plugins/xfshoster"
	"github.com/strob0t/scavengarr/internal/resolver"
	"github.com/strob0t/scavengarr/internal/scrapeengine"
	"github.com/strob0t/scavengarr/internal/streamcache"
	"github.com/strob0t/scavengarr/internal/telemetry"
	searchusecase "github.com/strob0t/scavengarr/internal/usecase/search"
	streamusecase "github.com/strob0t/scavengarr/internal/usecase/stream"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracing, err := telemetry.Init(context.Background(), cfg.ServiceName)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	logger.Info("configuration loaded",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("cacheBackend", cfg.CacheBackend),
		slog.Bool("hasTMDBKey", cfg.TMDBAPIKey != ""),
		slog.Bool("hasJackett", cfg.JackettEndpoint != ""),
		slog.Bool("hasProwlarr", cfg.ProwlarrEndpoint != ""),
	)

	client := httpclient.New(httpclient.Options{
		Timeout:             cfg.RequestTimeout,
		UserAgent:           cfg.UserAgent,
		ProxyURL:            cfg.ProxyURL,
		MaxIdleConnsPerHost: 16,
		DisableRedirects:    cfg.DisableRedirectFollow,
	})

	cache := buildCache(cfg, logger)
	pool := buildBrowserPool(cfg, logger)
	defer func() { _ = pool.Close() }()

	registry := plugin.NewRegistry()
	registerPlugins(registry, cfg, client, pool, logger)

	validatorClient := httpclient.New(httpclient.Options{
		Timeout:             cfg.ValidatorTimeout,
		UserAgent:           cfg.UserAgent,
		ProxyURL:            cfg.ProxyURL,
		MaxIdleConnsPerHost: 32,
	})
	validator := linkvalidator.New(validatorClient, cfg.ValidatorConcurrency)
	engine := scrapeengine.New(validator, logger)

	resolvers := buildResolvers(cfg, client, pool, logger)

	crawlFactory := crawljob.NewFactory(cfg.CrawlJobTTL)
	crawlRepo := crawljob.NewRepository(cache)

	searchUseCase := searchusecase.New(registry, engine, cache, crawlFactory, crawlRepo, logger).
		WithCacheTTL(cfg.SearchCacheTTL).
		WithDevelopmentMode(cfg.IsDevelopment())

	streamCache := streamcache.New(cache, cfg.StreamCacheTTL)
	metaResolver := buildMetadataResolver(cfg, cache, logger)
	healthTracker := health.NewTracker()
	shutdownTracker := health.NewShutdownTracker()

	streamUseCase := streamusecase.New(registry, engine, metaResolver, resolvers, streamCache, cache, logger).
		WithPerPluginDeadline(cfg.PerPluginDeadline).
		WithEagerResolveCount(cfg.EagerResolveCount).
		WithHealthTracker(healthTracker)

	srv := apihttp.NewServer(
		apihttp.WithLogger(logger),
		apihttp.WithSearchUseCase(searchUseCase),
		apihttp.WithStreamUseCase(streamUseCase),
		apihttp.WithRegistry(registry),
		apihttp.WithCrawlRepository(crawlRepo),
		apihttp.WithHealthTracker(healthTracker),
		apihttp.WithShutdownTracker(shutdownTracker),
		apihttp.WithDevelopmentMode(cfg.IsDevelopment()),
		apihttp.WithStremioBaseURL(cfg.StremioBaseURL),
		apihttp.WithServiceName(cfg.ServiceName),
		apihttp.WithHTTPClient(client),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	logger.Info("scavengarr started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case listenErr := <-errCh:
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", listenErr.Error()))
			os.Exit(1)
		}
	}

	shutdownTracker.Drain(context.Background(), 10*time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("scavengarr stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	options := &slog.HandlerOptions{Level: parseLogLevel(levelRaw)}
	if strings.ToLower(strings.TrimSpace(formatRaw)) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// buildCache selects the cache backend per Config.CacheBackend, falling
// back to the in-memory backend if Redis is unreachable at startup.
func buildCache(cfg app.Config, logger *slog.Logger) cachekv.Port {
	if cfg.CacheBackend != "redis" || cfg.RedisURL == "" {
		return cachekv.NewMemoryBackend(64)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid redis url, falling back to in-memory cache", slog.String("error", err.Error()))
		return cachekv.NewMemoryBackend(64)
	}
	redisClient := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, falling back to in-memory cache", slog.String("error", err.Error()))
		return cachekv.NewMemoryBackend(64)
	}
	logger.Info("redis cache connected", slog.String("addr", opts.Addr))
	return cachekv.NewRedisBackend(redisClient)
}

// buildBrowserPool launches the shared headless browser. A disabled
// toggle or a failed launch (no Chromium available, sandboxed container)
// degrades to the no-op pool so headless-mode plugins fail as challenge
// errors instead of taking the process down.
func buildBrowserPool(cfg app.Config, logger *slog.Logger) browserpool.Pool {
	if !cfg.HeadlessEnabled {
		logger.Info("headless browser disabled, headless-mode plugins will be unavailable")
		return browserpool.NewNoopPool()
	}
	pool, err := browserpool.NewRodPool(browserpool.RodConfig{
		NavigationTimeout: cfg.HeadlessNavTimeout,
		BinPath:           cfg.HeadlessBinPath,
	})
	if err != nil {
		logger.Warn("headless browser launch failed, falling back to no-op pool",
			slog.String("error", err.Error()))
		return browserpool.NewNoopPool()
	}
	logger.Info("headless browser pool started",
		slog.Duration("navTimeout", cfg.HeadlessNavTimeout))
	return pool
}

// registerPlugins discovers every configured plugin. Discover defers
// construction until first Get, so an unconfigured slot costs nothing.
func registerPlugins(registry *plugin.Registry, cfg app.Config, client *http.Client, pool browserpool.Pool, logger *slog.Logger) {
	if cfg.JackettEndpoint != "" {
		mustDiscover(registry, logger, "jackett", func() (plugin.Plugin, error) {
			return torznabindexer.New(torznabindexer.Config{
				Name:     "jackett",
				Endpoint: cfg.JackettEndpoint,
				APIKey:   cfg.JackettAPIKey,
				Client:   client,
			}), nil
		})
	}
	if cfg.ProwlarrEndpoint != "" {
		mustDiscover(registry, logger, "prowlarr", func() (plugin.Plugin, error) {
			return torznabindexer.New(torznabindexer.Config{
				Name:     "prowlarr",
				Endpoint: cfg.ProwlarrEndpoint,
				APIKey:   cfg.ProwlarrAPIKey,
				Client:   client,
			}), nil
		})
	}
	if len(cfg.DDLSiteDomains) > 0 {
		mustDiscover(registry, logger, "ddlsite", func() (plugin.Plugin, error) {
			return ddlsite.New(ddlsite.Config{
				Name:              "ddlsite",
				Domains:           cfg.DDLSiteDomains,
				Client:            client,
				SearchPath:        "/search/%s",
				ListLinkClass:     "release-link",
				DetailLinkClass:   "mirror-link",
				DetailConcurrency: cfg.PluginDetailConcurrency,
			}), nil
		})
	}
	if len(cfg.StreamSiteDomains) > 0 {
		mustDiscover(registry, logger, "streamsite", func() (plugin.Plugin, error) {
			return streamsite.New(streamsite.Config{
				Name:          "streamsite",
				Domains:       cfg.StreamSiteDomains,
				Pool:          pool,
				SearchPath:    "/search/%s",
				ResultPattern: regexp.MustCompile(`(?i)<a[^>]+href="([^"]+)"[^>]*class="result-title"[^>]*>([^<]+)</a>`),
				Concurrency:   cfg.HeadlessConcurrency,
			}), nil
		})
	}
	if len(cfg.XFSHosterDomains) > 0 {
		mustDiscover(registry, logger, "xfshoster", func() (plugin.Plugin, error) {
			return xfshoster.New(xfshoster.Config{
				Name:          "xfshoster",
				Domains:       cfg.XFSHosterDomains,
				Client:        client,
				SearchPath:    "/search/%s",
				ResultPattern: regexp.MustCompile(`(?i)<a[^>]+href="([^"]+)"[^>]*>([^<]+)</a>\s*\(([\d.,]+\s?[KMGT]B)\)`),
			}), nil
		})
	}
}

func mustDiscover(registry *plugin.Registry, logger *slog.Logger, name string, factory plugin.Factory) {
	if err := registry.Discover(name, factory); err != nil {
		logger.Warn("plugin registration failed", slog.String("plugin", name), slog.String("error", err.Error()))
	}
}

// buildResolvers wires one XFSResolver for configured XFS-family hoster
// domains and one StreamingResolver for embed-style streaming hosts.
func buildResolvers(cfg app.Config, client *http.Client, pool browserpool.Pool, logger *slog.Logger) *resolver.Registry {
	registry := resolver.NewRegistry(client, logger)

	if len(cfg.XFSHosterDomains) > 0 {
		registry.Register(resolver.NewXFSResolver(resolver.XFSConfig{
			ResolverName:      "xfshoster",
			Domains:           cfg.XFSHosterDomains,
			FileIDPattern:     regexp.MustCompile(`(?i)/([a-z0-9]{8,})(?:\.html)?$`),
			OfflineMarkers:    []string{"File Not Found", "file was removed", "File deleted"},
			DirectLinkExtract: regexp.MustCompile(`(?i)href="(https?://[^"]+/d/[^"]+)"`),
			UserAgent:         cfg.UserAgent,
		}, client))
	}

	if len(cfg.StreamingResolverDomains) > 0 {
		registry.Register(resolver.NewStreamingResolver("streamsite", cfg.StreamingResolverDomains, client, pool, cfg.UserAgent))
	}

	return registry
}

// buildMetadataResolver wires the TMDB resolver as the sole title
// source; no secondary is configured since no other keyless metadata
// provider appears anywhere in this stack (see DESIGN.md).
func buildMetadataResolver(cfg app.Config, cache cachekv.Port, logger *slog.Logger) metadata.Resolver {
	primary := metadata.NewTMDBResolver(metadata.Config{
		APIKey:   cfg.TMDBAPIKey,
		BaseURL:  cfg.TMDBBaseURL,
		Client:   &http.Client{Timeout: 10 * time.Second},
		Cache:    cache,
		CacheTTL: cfg.TMDBCacheTTL,
		Language: cfg.TMDBLanguage,
	})
	if !primary.Enabled() {
		logger.Info("tmdb api key not configured, title resolution for stream ranking is degraded")
	}
	return &metadata.SuggestResolver{Primary: primary}
}
