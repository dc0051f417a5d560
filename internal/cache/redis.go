package cache

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis configuration
type Config struct {
	Host       string
	Port       int
	Password   string
	DB         int
	TLSEnabled bool
	KeyPrefix  string
}

// LoadConfigFromEnv loads Redis configuration from environment variables
func LoadConfigFromEnv() *Config {
	port, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return &Config{
		Host:       getEnv("REDIS_HOST", "localhost"),
		Port:       port,
		Password:   getEnv("REDIS_PASSWORD", ""),
		DB:         db,
		TLSEnabled: getEnv("REDIS_TLS_ENABLED", "false") == "true",
		KeyPrefix:  getEnv("REDIS_KEY_PREFIX", "travel"),
	}
}

// Addr returns host:port
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, config *Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         config.Addr(),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	}

	// Enable TLS if configured (required for Upstash)
	if config.TLSEnabled {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// RouteCache stores provider results in Redis so every API instance
// shares them. Expiry is left to Redis.
type RouteCache struct {
	client *redis.Client
	prefix string
	scope  string
}

// NewRouteCache returns a cache whose keys are namespaced by prefix and
// scope (normally the provider name)
func NewRouteCache(client *redis.Client, prefix, scope string) *RouteCache {
	if prefix == "" {
		prefix = "travel"
	}
	return &RouteCache{client: client, prefix: prefix, scope: scope}
}

// RouteKey hashes a request fingerprint into a fixed-length key
func (c *RouteCache) RouteKey(fingerprint string) string {
	hash := sha256.Sum256([]byte(fingerprint))
	return fmt.Sprintf("%s:routes:%s:%x", c.prefix, c.scope, hash[:8])
}

// Get retrieves cached routes. A miss is (nil, false, nil).
func (c *RouteCache) Get(ctx context.Context, fingerprint string) ([]models.Route, bool, error) {
	data, err := c.client.Get(ctx, c.RouteKey(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil // cache miss
	}
	if err != nil {
		return nil, false, err
	}

	routes := []models.Route{}
	if err := json.Unmarshal(data, &routes); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal cached routes: %w", err)
	}

	return routes, true, nil
}

// Set caches routes for ttl
func (c *RouteCache) Set(ctx context.Context, fingerprint string, routes []models.Route, ttl time.Duration) error {
	if routes == nil {
		routes = []models.Route{}
	}
	data, err := json.Marshal(routes)
	if err != nil {
		return fmt.Errorf("failed to marshal routes: %w", err)
	}

	return c.client.Set(ctx, c.RouteKey(fingerprint), data, ttl).Err()
}

// HealthCheck performs a health check on the Redis connection
func HealthCheck(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis ping failed: %w", err)
	}

	return nil
}

// Stats returns Redis connection pool stats
func Stats(client *redis.Client) map[string]interface{} {
	poolStats := client.PoolStats()

	return map[string]interface{}{
		"hits":        poolStats.Hits,
		"misses":      poolStats.Misses,
		"timeouts":    poolStats.Timeouts,
		"total_conns": poolStats.TotalConns,
		"idle_conns":  poolStats.IdleConns,
		"stale_conns": poolStats.StaleConns,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
