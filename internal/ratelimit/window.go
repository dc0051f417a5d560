package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the sliding window length used by every limiter
const DefaultWindow = time.Minute

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter admits or rejects a request for a key. Rejection never blocks.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Window is an in-memory sliding-window limiter. Only admitted requests
// are recorded, so a burst of rejections does not extend the window.
type Window struct {
	mu     sync.Mutex
	limit  int
	length time.Duration
	now    func() time.Time
	hits   map[string][]time.Time
}

// WindowOption configures a Window
type WindowOption func(*Window)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) WindowOption {
	return func(w *Window) { w.now = now }
}

// WithLength changes the window length
func WithLength(d time.Duration) WindowOption {
	return func(w *Window) {
		if d > 0 {
			w.length = d
		}
	}
}

// NewWindow creates a limiter admitting limit requests per window per key.
// A limit of zero or less disables limiting.
func NewWindow(limit int, opts ...WindowOption) *Window {
	w := &Window{
		limit:  limit,
		length: DefaultWindow,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Allow records the request if the window has room
func (w *Window) Allow(_ context.Context, key string) (Decision, error) {
	now := w.now()
	if w.limit <= 0 {
		return Decision{Allowed: true, Limit: w.limit, Remaining: -1, ResetAt: now}, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.length)
	kept := w.hits[key][:0]
	for _, ts := range w.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	d := Decision{Limit: w.limit}
	if len(kept) < w.limit {
		kept = append(kept, now)
		d.Allowed = true
	}
	d.Remaining = w.limit - len(kept)
	// kept is never empty here: an empty window always admits
	d.ResetAt = kept[0].Add(w.length)
	w.hits[key] = kept
	return d, nil
}

// Count returns the number of admitted requests currently inside the window
func (w *Window) Count(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.now().Add(-w.length)
	n := 0
	for _, ts := range w.hits[key] {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
