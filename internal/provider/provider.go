package provider

import (
	"context"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
)

// Status is the terminal state of one provider search
type Status string

const (
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusDisabled    Status = "disabled"
	StatusRateLimited Status = "rate_limited"
)

// Provider is a source of travel routes. Search never returns an error:
// remote failures are reported through Result.Status and Result.Error.
type Provider interface {
	Name() string
	Search(ctx context.Context, req models.SearchRequest) Result
}

// Backend performs the actual lookup for a Managed provider
type Backend interface {
	Fetch(ctx context.Context, req models.SearchRequest) ([]models.Route, error)
}

// BackendFunc adapts a function to the Backend interface
type BackendFunc func(ctx context.Context, req models.SearchRequest) ([]models.Route, error)

// Fetch calls f
func (f BackendFunc) Fetch(ctx context.Context, req models.SearchRequest) ([]models.Route, error) {
	return f(ctx, req)
}

// Result is the outcome of a single provider search
type Result struct {
	Provider string         `json:"provider"`
	Status   Status         `json:"status"`
	Routes   []models.Route `json:"routes"`
	Error    string         `json:"error,omitempty"`
	Attempts int            `json:"attempts"`
	CacheHit bool           `json:"cache_hit"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// OK reports whether the search completed
func (r Result) OK() bool {
	return r.Status == StatusCompleted
}
