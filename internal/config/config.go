package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/passbi/passbi_travel/internal/cache"
	"github.com/passbi/passbi_travel/internal/db"
	"github.com/passbi/passbi_travel/internal/provider"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RequestDefaults fill in search fields the caller leaves out
type RequestDefaults struct {
	MinCheckedBags int
	MaxConnections int
	TimeWeight     float64
	CostWeight     float64
	Limit          int
}

// Config holds application configuration
type Config struct {
	Port      string
	LogLevel  slog.Level
	LogFormat string

	CacheBackend          string
	RateLimitBackend      string
	HistoryEnabled        bool
	APIRateLimitPerMinute int
	Concurrency           int

	Redis     *cache.Config
	DB        *db.Config
	Providers []provider.Spec
	Defaults  RequestDefaults
}

// Load loads configuration from environment variables and, when
// PROVIDERS_FILE is set, the provider list from that YAML file
func Load() (*Config, error) {
	level, err := ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnv("API_PORT", "8080"),
		LogLevel:              level,
		LogFormat:             strings.ToLower(getEnv("LOG_FORMAT", "text")),
		CacheBackend:          strings.ToLower(getEnv("CACHE_BACKEND", BackendMemory)),
		RateLimitBackend:      strings.ToLower(getEnv("RATE_LIMIT_BACKEND", BackendMemory)),
		HistoryEnabled:        getEnv("HISTORY_ENABLED", "false") == "true",
		APIRateLimitPerMinute: getEnvInt("API_RATE_LIMIT_PER_MINUTE", 120),
		Concurrency:           getEnvInt("PROVIDER_CONCURRENCY", 0),
		Redis:                 cache.LoadConfigFromEnv(),
		DB:                    db.LoadConfigFromEnv(),
		Defaults: RequestDefaults{
			MinCheckedBags: getEnvInt("DEFAULT_BAGS", 2),
			MaxConnections: getEnvInt("DEFAULT_MAX_CONNECTIONS", 2),
			TimeWeight:     getEnvFloat("DEFAULT_TIME_WEIGHT", 0.6),
			CostWeight:     getEnvFloat("DEFAULT_COST_WEIGHT", 0.4),
			Limit:          getEnvInt("DEFAULT_RESULT_LIMIT", 5),
		},
	}

	for name, backend := range map[string]string{"CACHE_BACKEND": cfg.CacheBackend, "RATE_LIMIT_BACKEND": cfg.RateLimitBackend} {
		if backend != BackendMemory && backend != BackendRedis {
			return nil, fmt.Errorf("%s must be %q or %q, got %q", name, BackendMemory, BackendRedis, backend)
		}
	}

	if path := getEnv("PROVIDERS_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read providers file: %w", err)
		}
		cfg.Providers, err = ParseProviders(data, os.Getenv)
		if err != nil {
			return nil, fmt.Errorf("providers file %s: %w", path, err)
		}
	} else {
		cfg.Providers = DefaultProviders(os.Getenv)
	}

	return cfg, nil
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.CacheBackend == BackendRedis || c.RateLimitBackend == BackendRedis
}

// DefaultProviders returns the built-in provider set: the synthetic
// catalogue, the flight offers API (enabled only with both credentials)
// and a rail/bus aggregator stub (enabled only with an API key)
func DefaultProviders(env func(string) string) []provider.Spec {
	synthetic := provider.DefaultConfig("synthetic")
	synthetic.Timeout = 5 * time.Second

	amadeus := provider.DefaultConfig("amadeus")
	amadeus.Credentials = provider.Credentials{
		APIKey:    env("AMADEUS_API_KEY"),
		APISecret: env("AMADEUS_API_SECRET"),
		BaseURL:   env("AMADEUS_BASE_URL"),
	}
	amadeus.Enabled = amadeus.HasCredentials()

	omio := provider.DefaultConfig("omio")
	omio.Credentials = provider.Credentials{APIKey: env("OMIO_API_KEY")}

	return []provider.Spec{
		{Kind: provider.KindSynthetic, Config: synthetic, Synthetic: provider.SyntheticOptions{DynamicPricing: true, Variations: true}},
		{Kind: provider.KindLive, Config: amadeus},
		{Kind: provider.KindStub, Config: omio},
	}
}

// ParseLevel maps a LOG_LEVEL value onto a slog level
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger from the log settings
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return v
	}
	return defaultValue
}
