package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisWindow is a sliding-window limiter shared by every process talking
// to the same Redis. Each admitted request is a ZSET member scored by its
// timestamp in milliseconds.
type RedisWindow struct {
	client *redis.Client
	prefix string
	limit  int
	length time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// RedisOption configures a RedisWindow
type RedisOption func(*RedisWindow)

// WithRedisClock replaces time.Now
func WithRedisClock(now func() time.Time) RedisOption {
	return func(w *RedisWindow) { w.now = now }
}

// WithPrefix sets the key prefix, "ratelimit" by default
func WithPrefix(prefix string) RedisOption {
	return func(w *RedisWindow) { w.prefix = prefix }
}

// WithLogger sets the logger used when Redis is unreachable
func WithLogger(logger *slog.Logger) RedisOption {
	return func(w *RedisWindow) { w.logger = logger }
}

// NewRedisWindow creates a Redis-backed limiter admitting limit requests
// per minute per key
func NewRedisWindow(client *redis.Client, limit int, opts ...RedisOption) *RedisWindow {
	w := &RedisWindow{
		client: client,
		prefix: "ratelimit",
		limit:  limit,
		length: DefaultWindow,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *RedisWindow) key(key string) string {
	return fmt.Sprintf("%s:%s", w.prefix, key)
}

// Allow admits the request when fewer than limit requests are in the window.
// Redis failures fail open: the decision is Allowed and the error is returned
// for the caller to log.
func (w *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := w.now()
	if w.limit <= 0 {
		return Decision{Allowed: true, Limit: w.limit, Remaining: -1, ResetAt: now}, nil
	}

	redisKey := w.key(key)
	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	minScore := now.Add(-w.length).UnixMilli()

	pipe := w.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(minScore, 10))
	card := pipe.ZCard(ctx, redisKey)
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixMilli()), Member: member})
	pipe.Expire(ctx, redisKey, 2*w.length)
	oldest := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		w.logger.Warn("redis rate limit check failed, allowing request",
			"key", key, "error", err)
		return Decision{Allowed: true, Limit: w.limit, Remaining: -1, ResetAt: now.Add(w.length)},
			fmt.Errorf("rate limit check: %w", err)
	}

	count := int(card.Val())
	d := Decision{Limit: w.limit, ResetAt: now.Add(w.length)}
	if first := oldest.Val(); len(first) > 0 {
		d.ResetAt = time.UnixMilli(int64(first[0].Score)).Add(w.length)
	}

	if count >= w.limit {
		// over the limit: drop the member we optimistically added
		if err := w.client.ZRem(ctx, redisKey, member).Err(); err != nil {
			w.logger.Warn("failed to remove rejected rate limit entry", "key", key, "error", err)
		}
		d.Remaining = 0
		return d, nil
	}

	d.Allowed = true
	d.Remaining = w.limit - count - 1
	return d, nil
}

// Count returns the number of requests recorded inside the current window
func (w *RedisWindow) Count(ctx context.Context, key string) (int, error) {
	minScore := w.now().Add(-w.length).UnixMilli()
	n, err := w.client.ZCount(ctx, w.key(key), "("+strconv.FormatInt(minScore, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("rate limit count: %w", err)
	}
	return int(n), nil
}

// Reset clears the window for a key
func (w *RedisWindow) Reset(ctx context.Context, key string) error {
	if err := w.client.Del(ctx, w.key(key)).Err(); err != nil {
		return fmt.Errorf("rate limit reset: %w", err)
	}
	return nil
}
