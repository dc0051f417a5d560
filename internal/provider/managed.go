package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/ratelimit"
)

// Managed wraps a Backend with the machinery every provider shares:
// enable switch, result cache, rate limit, per-attempt timeout, retry with
// exponential backoff and route normalization.
type Managed struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
	limiter ratelimit.Limiter
	cache   ResultCache
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
	stats   counters
}

// Option configures a Managed provider
type Option func(*Managed)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Managed) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLimiter replaces the default in-memory sliding window
func WithLimiter(l ratelimit.Limiter) Option {
	return func(m *Managed) {
		if l != nil {
			m.limiter = l
		}
	}
}

// WithCache replaces the default in-memory result cache
func WithCache(c ResultCache) Option {
	return func(m *Managed) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithClock replaces time.Now for elapsed time measurement
func WithClock(now func() time.Time) Option {
	return func(m *Managed) { m.now = now }
}

// WithSleep replaces the backoff sleep, mainly for tests
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(m *Managed) { m.sleep = sleep }
}

// NewManaged validates cfg and wraps backend
func NewManaged(cfg Config, backend Backend, opts ...Option) (*Managed, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		return nil, fmt.Errorf("provider %s: backend is required", cfg.Name)
	}

	m := &Managed{
		cfg:     cfg,
		backend: backend,
		logger:  slog.Default(),
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.limiter == nil {
		m.limiter = ratelimit.NewWindow(cfg.RateLimitPerMinute)
	}
	if m.cache == nil {
		m.cache = NewMemoryCache(cfg.CacheSize)
	}
	m.logger = m.logger.With("provider", cfg.Name)
	return m, nil
}

// Name returns the configured provider name
func (m *Managed) Name() string {
	return m.cfg.Name
}

// Enabled reports whether the provider is switched on
func (m *Managed) Enabled() bool {
	return m.cfg.Enabled
}

// Config returns a copy of the provider configuration
func (m *Managed) Config() Config {
	return m.cfg
}

// Stats returns a snapshot of the provider counters
func (m *Managed) Stats() StatsSnapshot {
	s := m.stats.snapshot()
	s.Name = m.cfg.Name
	s.Enabled = m.cfg.Enabled
	return s
}

// Search runs the request through the rate limit, the cache and the retry
// loop. Cache hits consume a rate limit slot too.
func (m *Managed) Search(ctx context.Context, req models.SearchRequest) (res Result) {
	start := m.now()
	res.Provider = m.cfg.Name

	defer func() {
		res.Elapsed = m.now().Sub(start)
		m.stats.record(res)
	}()

	if !m.cfg.Enabled {
		res.Status = StatusDisabled
		res.Routes = []models.Route{}
		res.Error = ErrDisabled.Error()
		return res
	}

	decision, err := m.limiter.Allow(ctx, m.cfg.Name)
	if err != nil {
		m.logger.Warn("rate limiter error", "error", err)
	}
	if !decision.Allowed {
		m.logger.Warn("rate limit exceeded", "limit", decision.Limit, "reset_at", decision.ResetAt)
		res.Status = StatusRateLimited
		res.Routes = []models.Route{}
		res.Error = ErrRateLimited.Error()
		return res
	}

	key := Fingerprint(req)
	if m.cfg.CacheTTL > 0 {
		routes, ok, err := m.cache.Get(ctx, key)
		if err != nil {
			m.logger.Warn("cache lookup failed", "error", err)
		}
		if ok {
			m.logger.Debug("cache hit", "key", key, "routes", len(routes))
			res.Status = StatusCompleted
			res.Routes = routes
			res.CacheHit = true
			return res
		}
	}

	routes, attempts, err := m.fetchWithRetry(ctx, req)
	res.Attempts = attempts
	if err != nil {
		m.logger.Error("search failed", "attempts", attempts, "error", err)
		res.Status = StatusFailed
		res.Routes = []models.Route{}
		res.Error = err.Error()
		return res
	}

	res.Status = StatusCompleted
	res.Routes = m.normalize(routes)
	if m.cfg.CacheTTL > 0 {
		if err := m.cache.Set(ctx, key, res.Routes, m.cfg.CacheTTL); err != nil {
			m.logger.Warn("cache store failed", "error", err)
		}
	}
	m.logger.Info("search completed", "routes", len(res.Routes), "attempts", attempts)
	return res
}

func (m *Managed) fetchWithRetry(ctx context.Context, req models.SearchRequest) ([]models.Route, int, error) {
	var lastErr error
	for attempt := 0; attempt <= m.cfg.MaxRetries; attempt++ {
		routes, err := m.fetchOnce(ctx, req)
		if err == nil {
			return routes, attempt + 1, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt + 1, fmt.Errorf("search cancelled: %w", ctx.Err())
		}
		if !IsRetryable(err) {
			return nil, attempt + 1, err
		}
		if attempt == m.cfg.MaxRetries {
			break
		}

		delay := m.cfg.RetryBaseDelay * time.Duration(1<<attempt)
		m.logger.Warn("attempt failed, retrying",
			"attempt", attempt+1, "delay_ms", delay.Milliseconds(), "error", err)
		if err := m.sleep(ctx, delay); err != nil {
			return nil, attempt + 1, fmt.Errorf("search cancelled: %w", err)
		}
	}
	return nil, m.cfg.MaxRetries + 1, fmt.Errorf("giving up after %d attempts: %w", m.cfg.MaxRetries+1, lastErr)
}

func (m *Managed) fetchOnce(ctx context.Context, req models.SearchRequest) (routes []models.Route, err error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panic: %v", r)
		}
	}()

	routes, err = m.backend.Fetch(attemptCtx, req)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("attempt exceeded %s: %w", m.cfg.Timeout, context.DeadlineExceeded)
	}
	return routes, err
}

// normalize drops malformed routes and stamps the provider name
func (m *Managed) normalize(routes []models.Route) []models.Route {
	out := make([]models.Route, 0, len(routes))
	for _, r := range routes {
		if err := r.Validate(); err != nil {
			m.logger.Warn("skipping malformed route", "carrier", r.Carrier, "error", err)
			continue
		}
		r = r.Clone()
		if r.Provider == "" {
			r.Provider = m.cfg.Name
		}
		out = append(out, r)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
