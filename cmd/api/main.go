package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/passbi/passbi_travel/internal/api"
	"github.com/passbi/passbi_travel/internal/app"
	"github.com/passbi/passbi_travel/internal/cache"
	"github.com/passbi/passbi_travel/internal/config"
	"github.com/passbi/passbi_travel/internal/db"
	"github.com/passbi/passbi_travel/internal/middleware"
	"github.com/passbi/passbi_travel/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := cfg.NewLogger()
	slog.SetDefault(logger)
	logger.Info("starting travel planner API")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	a, err := app.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := fiber.New(fiber.Config{
		AppName:      "Travel Planner API",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: api.ErrorHandler(logger),
	})

	// Middleware
	server.Use(recover.New())
	server.Use(middleware.AnalyticsMiddleware(logger, a.Metrics))
	server.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	}))
	server.Use(middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Limiter:   clientLimiter(a, cfg),
		SkipPaths: []string{"/health", "/metrics"},
		Logger:    logger,
	}))

	// Routes
	handler := api.NewHandler(a.Agent, handlerOptions(a)...)
	handler.Register(server)
	server.Get("/metrics", api.Metrics(a.Registry))

	// 404 handler
	server.Use(api.NotFound)

	addr := fmt.Sprintf(":%s", cfg.Port)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down gracefully")
		if err := server.ShutdownWithTimeout(30 * time.Second); err != nil {
			logger.Error("error during shutdown", "error", err)
		}
	}()

	logger.Info("server listening", "addr", addr,
		"plan", fmt.Sprintf("http://localhost%s/v2/plan?origin=Berlin&destination=Paris&date=YYYY-MM-DD", addr))

	if err := server.Listen(addr); err != nil {
		logger.Error("failed to start server", "error", err)
		a.Close()
		os.Exit(1)
	}
}

func handlerOptions(a *app.App) []api.Option {
	opts := []api.Option{
		api.WithDefaults(a.Config.Defaults),
		api.WithLogger(a.Logger),
	}
	for _, p := range a.Providers {
		opts = append(opts, api.WithProviders(p))
	}
	if a.Redis != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return cache.HealthCheck(ctx, a.Redis)
		}))
	}
	if a.DB != nil {
		opts = append(opts, api.WithHealthCheck("database", func(ctx context.Context) error {
			return db.HealthCheck(ctx, a.DB)
		}))
	}
	if a.History != nil {
		opts = append(opts, api.WithHistory(a.History))
	}
	return opts
}

// clientLimiter shares client windows across instances when Redis backs
// rate limiting
func clientLimiter(a *app.App, cfg *config.Config) ratelimit.Limiter {
	if cfg.RateLimitBackend == config.BackendRedis {
		return ratelimit.NewRedisWindow(a.Redis, cfg.APIRateLimitPerMinute,
			ratelimit.WithPrefix(cfg.Redis.KeyPrefix+":ratelimit:api"),
			ratelimit.WithLogger(a.Logger),
		)
	}
	return ratelimit.NewWindow(cfg.APIRateLimitPerMinute)
}
