// Package app initializes and holds long-lived application services, acting as
// a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobscout/internal/api"
	"github.com/JakeFAU/jobscout/internal/clock/system"
	"github.com/JakeFAU/jobscout/internal/config"
	"github.com/JakeFAU/jobscout/internal/jobs"
	"github.com/JakeFAU/jobscout/internal/metrics"
	"github.com/JakeFAU/jobscout/internal/policy/ratelimit"
	"github.com/JakeFAU/jobscout/internal/proxy"
	"github.com/JakeFAU/jobscout/internal/retrieval"
	"github.com/JakeFAU/jobscout/internal/search"
	"github.com/JakeFAU/jobscout/internal/sources"
	"github.com/JakeFAU/jobscout/internal/storage"
)

// App holds the shared, long-lived services. It is built once per command
// and closed by a cobra hook when the command finishes.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	cache    jobs.CacheStore
	proxies  *proxy.Pool
	searcher *search.Orchestrator
	server   *api.Server
}

// Option customizes construction, primarily for tests.
type Option func(*options)

type options struct {
	cache   jobs.CacheStore
	sources []jobs.Source
	clock   jobs.Clock
}

// WithCache injects a cache store instead of opening the configured backend.
func WithCache(c jobs.CacheStore) Option {
	return func(o *options) { o.cache = c }
}

// WithSources replaces the job board adapters.
func WithSources(s []jobs.Source) Option {
	return func(o *options) { o.sources = s }
}

// WithClock replaces the wall clock.
func WithClock(c jobs.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New builds every service described by cfg. It fails fast if the cache
// backend cannot be opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: system.Clock{}}
	for _, opt := range opts {
		opt(&o)
	}
	metrics.Init()

	cache := o.cache
	if cache == nil {
		var err error
		cache, err = storage.Open(ctx, storage.Config{
			Backend: cfg.Cache.Backend,
			Path:    cfg.Cache.Path,
			DSN:     cfg.Cache.DSN,
			Table:   cfg.Cache.Table,
			TTL:     cfg.CacheTTL(),

			MaxConns:        cfg.Cache.MaxConns,
			MinConns:        cfg.Cache.MinConns,
			MaxConnLifetime: cfg.CacheMaxConnLifetime(),
		}, o.clock)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
	}
	logger.Info("cache ready", zap.String("backend", cfg.Cache.Backend), zap.Duration("ttl", cfg.CacheTTL()))

	a := &App{cfg: cfg, logger: logger, cache: cache}

	clientOpts := []retrieval.Option{
		retrieval.WithLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.HTTP.RateLimitRPS,
			DefaultBurst: cfg.HTTP.RateLimitBurst,
		})),
	}
	if cfg.Proxy.Enabled {
		a.proxies = newProxyPool(cfg, o.clock, logger)
		clientOpts = append(clientOpts, retrieval.WithProxies(a.proxies))
	}
	policy := retrieval.DefaultRetryPolicy()
	policy.MaxAttempts = cfg.HTTP.MaxAttempts
	client := retrieval.New(retrieval.Config{
		Timeout: cfg.FetchTimeout(),
		Policy:  policy,
	}, logger.Named("retrieval"), clientOpts...)

	srcs := o.sources
	if srcs == nil {
		srcs = sources.All(client, logger)
	}

	a.searcher = search.New(cfg.Catalog(), srcs, cache, search.Config{
		Workers: cfg.Search.Workers,
		Timeout: cfg.SearchTimeout(),
	}, logger, search.WithClock(o.clock))

	a.server = api.NewServer(a.searcher, cache, o.clock, api.Config{
		StaticDir:      cfg.Server.StaticDir,
		RequestTimeout: cfg.RequestTimeout(),
	}, logger)

	return a, nil
}

func newProxyPool(cfg config.Config, clock jobs.Clock, logger *zap.Logger) *proxy.Pool {
	var srcs []proxy.Source
	if len(cfg.Proxy.Sources) == 0 {
		srcs = proxy.DefaultSources(cfg.Proxy.PerSourceLimit)
	} else {
		for _, s := range cfg.Proxy.Sources {
			scheme := s.Scheme
			if scheme == "" {
				scheme = proxy.SchemeHTTP
			}
			name := s.Name
			if name == "" {
				name = s.URL
			}
			srcs = append(srcs, proxy.NewListSource(name, s.URL, scheme, cfg.Proxy.PerSourceLimit))
		}
	}
	probability := cfg.Proxy.Probability
	if probability == 0 {
		// the pool reads zero as "use the default"
		probability = -1
	}
	return proxy.NewPool(srcs, proxy.Config{
		Probability:     probability,
		Capacity:        cfg.Proxy.Capacity,
		RefreshInterval: cfg.ProxyRefreshInterval(),
	}, clock, nil, logger.Named("proxy"))
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Cache exposes the configured cache store.
func (a *App) Cache() jobs.CacheStore {
	return a.cache
}

// Searcher returns the search pipeline.
func (a *App) Searcher() *search.Orchestrator {
	return a.searcher
}

// Search runs one search through the shared pipeline.
func (a *App) Search(ctx context.Context, career, location string) ([]jobs.Listing, search.Outcome, error) {
	return a.searcher.SearchWithOutcome(ctx, career, location)
}

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// WarmProxies fills the proxy pool ahead of the first search. It is a no-op
// when proxies are disabled.
func (a *App) WarmProxies(ctx context.Context) int {
	if a.proxies == nil {
		return 0
	}
	n := a.proxies.Refresh(ctx)
	a.logger.Info("proxy pool warmed", zap.Int("size", n))
	return n
}

// Sweep purges expired cache rows once.
func (a *App) Sweep(ctx context.Context) (int64, error) {
	removed, err := a.cache.Cleanup(ctx)
	if err != nil {
		return 0, fmt.Errorf("cache cleanup: %w", err)
	}
	metrics.ObserveCacheSweep(removed)
	a.logger.Info("cache swept", zap.Int64("removed", removed))
	return removed, nil
}

// RunSweeper sweeps the cache every interval until ctx is done.
func (a *App) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Sweep(ctx); err != nil {
				a.logger.Warn("periodic cache sweep failed", zap.Error(err))
			}
		}
	}
}

// Close shuts down all services in the container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("error closing cache", zap.Error(err))
	}
	// Sync errors on stdout/stderr are expected on some platforms.
	_ = a.logger.Sync()
}
