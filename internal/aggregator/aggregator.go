package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
	"github.com/passbi/passbi_travel/internal/provider"
)

// Outcome summarizes one provider's part in a collection
type Outcome struct {
	Provider  string          `json:"provider"`
	Status    provider.Status `json:"status"`
	Routes    int             `json:"routes"`
	Error     string          `json:"error,omitempty"`
	CacheHit  bool            `json:"cache_hit"`
	Attempts  int             `json:"attempts"`
	ElapsedMS int64           `json:"elapsed_ms"`
}

// Stats describes a collection across all providers
type Stats struct {
	Tried     int       `json:"tried"`
	Failed    int       `json:"failed"`
	Disabled  int       `json:"disabled"`
	Collected int       `json:"collected"`
	Providers []Outcome `json:"providers"`
}

// Succeeded is the number of tried providers that completed
func (s Stats) Succeeded() int {
	return s.Tried - s.Failed
}

// Aggregator fans a request out to every registered provider and merges
// the routes in registration order
type Aggregator struct {
	providers   []provider.Provider
	concurrency int
	logger      *slog.Logger
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithConcurrency caps the number of providers queried at once.
// One makes the collection sequential; zero means no cap.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n >= 0 {
			a.concurrency = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an aggregator over providers
func New(providers []provider.Provider, opts ...Option) *Aggregator {
	a := &Aggregator{
		providers: append([]provider.Provider(nil), providers...),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Providers returns the registered providers in order
func (a *Aggregator) Providers() []provider.Provider {
	return append([]provider.Provider(nil), a.providers...)
}

// Collect queries every provider. It never fails: provider errors and
// panics are recorded in Stats.
func (a *Aggregator) Collect(ctx context.Context, req models.SearchRequest) ([]models.Route, Stats) {
	results := make([]provider.Result, len(a.providers))

	var sem chan struct{}
	if a.concurrency > 0 {
		sem = make(chan struct{}, a.concurrency)
	}

	var wg sync.WaitGroup
	for i, p := range a.providers {
		wg.Add(1)
		go func(i int, p provider.Provider) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					results[i] = provider.Result{Provider: p.Name(), Status: provider.StatusFailed, Error: ctx.Err().Error()}
					return
				}
			}
			results[i] = a.search(ctx, p, req)
		}(i, p)
	}
	wg.Wait()

	routes := make([]models.Route, 0)
	stats := Stats{Providers: make([]Outcome, 0, len(results))}
	for _, res := range results {
		stats.Providers = append(stats.Providers, Outcome{
			Provider:  res.Provider,
			Status:    res.Status,
			Routes:    len(res.Routes),
			Error:     res.Error,
			CacheHit:  res.CacheHit,
			Attempts:  res.Attempts,
			ElapsedMS: res.Elapsed.Milliseconds(),
		})

		if res.Status == provider.StatusDisabled {
			stats.Disabled++
			continue
		}
		stats.Tried++
		if res.Status != provider.StatusCompleted {
			stats.Failed++
			continue
		}
		routes = append(routes, res.Routes...)
	}
	stats.Collected = len(routes)

	a.logger.Info("collection finished",
		"tried", stats.Tried, "failed", stats.Failed, "disabled", stats.Disabled, "routes", stats.Collected)
	return routes, stats
}

func (a *Aggregator) search(ctx context.Context, p provider.Provider, req models.SearchRequest) (res provider.Result) {
	name := p.Name()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("provider panicked", "provider", name, "panic", r)
			res = provider.Result{
				Provider: name,
				Status:   provider.StatusFailed,
				Error:    fmt.Sprintf("provider panic: %v", r),
				Elapsed:  time.Since(start),
			}
		}
	}()

	res = p.Search(ctx, req)
	if res.Provider == "" {
		res.Provider = name
	}
	if res.Status == provider.StatusCompleted {
		res.Routes = models.CloneRoutes(res.Routes)
	} else if res.Status != provider.StatusDisabled {
		a.logger.Warn("provider did not complete", "provider", name, "status", res.Status, "error", res.Error)
	}
	return res
}
