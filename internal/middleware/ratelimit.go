package middleware

import (
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/passbi_travel/internal/ratelimit"
)

// RateLimitConfig configures RateLimitMiddleware
type RateLimitConfig struct {
	Limiter ratelimit.Limiter

	// KeyFunc identifies the client, c.IP() by default
	KeyFunc func(c *fiber.Ctx) string

	// SkipPaths are never limited
	SkipPaths []string

	Logger *slog.Logger
	Now    func() time.Time
}

// RateLimitMiddleware applies a per-client sliding-window limit. Rejected
// requests get a 429 JSON body with Retry-After; limiter errors let the
// request through.
func RateLimitMiddleware(cfg RateLimitConfig) fiber.Handler {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *fiber.Ctx) error {
		if skip[c.Path()] {
			return c.Next()
		}

		key := "client:" + cfg.KeyFunc(c)
		d, err := cfg.Limiter.Allow(c.UserContext(), key)
		if err != nil {
			cfg.Logger.Warn("client rate limit check failed", "key", key, "error", err)
		}
		if d.Limit <= 0 {
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if d.Allowed {
			return c.Next()
		}

		retryAfter := int64(math.Ceil(d.ResetAt.Sub(cfg.Now()).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error":       "rate_limit_exceeded",
			"message":     "Too many requests per minute",
			"limit":       d.Limit,
			"retry_after": retryAfter,
			"reset_at":    d.ResetAt.UTC().Format(time.RFC3339),
		})
	}
}
