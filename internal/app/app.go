package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/passbi/passbi_travel/internal/agent"
	"github.com/passbi/passbi_travel/internal/aggregator"
	"github.com/passbi/passbi_travel/internal/cache"
	"github.com/passbi/passbi_travel/internal/config"
	"github.com/passbi/passbi_travel/internal/db"
	"github.com/passbi/passbi_travel/internal/history"
	"github.com/passbi/passbi_travel/internal/metrics"
	"github.com/passbi/passbi_travel/internal/provider"
	"github.com/passbi/passbi_travel/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// App holds the wired planner and the connections it owns
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Providers []*provider.Managed
	Agent     *agent.Agent
	Metrics   *metrics.Metrics
	Registry  *prometheus.Registry
	Redis     *redis.Client
	DB        *pgxpool.Pool
	History   *history.Store
}

// New connects the configured backends and assembles the planner
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}

	if cfg.UsesRedis() {
		client, err := cache.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		logger.Info("redis connection established", "addr", cfg.Redis.Addr())
	}

	if cfg.HistoryEnabled {
		pool, err := db.Open(ctx, cfg.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.DB = pool
		a.History = history.NewStore(pool)
		if err := a.History.EnsureSchema(ctx); err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("run history enabled")
	}

	providers, err := provider.BuildAll(cfg.Providers, a.providerDeps())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to build providers: %w", err)
	}
	a.Providers = providers

	sources := make([]metrics.StatsSource, len(providers))
	members := make([]provider.Provider, len(providers))
	for i, p := range providers {
		sources[i] = p
		members[i] = p
		logger.Info("provider configured", "provider", p.Name(), "enabled", p.Enabled())
	}

	a.Metrics = metrics.New(a.Registry)
	a.Registry.MustRegister(
		metrics.NewProviderCollector(sources...),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recorders := []agent.RunRecorder{a.Metrics}
	if a.History != nil {
		recorders = append(recorders, a.History)
	}

	collector := aggregator.New(members,
		aggregator.WithConcurrency(cfg.Concurrency),
		aggregator.WithLogger(logger),
	)
	a.Agent = agent.New(collector, agent.WithLogger(logger), agent.WithRecorder(recorders...))
	return a, nil
}

func (a *App) providerDeps() provider.Deps {
	deps := provider.Deps{
		Logger:     a.Logger,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
	prefix := a.Config.Redis.KeyPrefix

	if a.Config.CacheBackend == config.BackendRedis {
		deps.Cache = func(cfg provider.Config) provider.ResultCache {
			return cache.NewRouteCache(a.Redis, prefix, cfg.Name)
		}
	}
	if a.Config.RateLimitBackend == config.BackendRedis {
		deps.Limiter = func(cfg provider.Config) ratelimit.Limiter {
			return ratelimit.NewRedisWindow(a.Redis, cfg.RateLimitPerMinute,
				ratelimit.WithPrefix(prefix+":ratelimit:provider"),
				ratelimit.WithLogger(a.Logger),
			)
		}
	}
	return deps
}

// Close releases the connections the app opened
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
