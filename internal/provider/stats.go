package provider

import (
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time copy of a provider's counters.
// Counters are informational only. Searches includes calls answered as
// disabled; those count in Disabled and are left out of the success rate
// and the average latency.
type StatsSnapshot struct {
	Name             string        `json:"name"`
	Enabled          bool          `json:"enabled"`
	Searches         int64         `json:"searches"`
	Successes        int64         `json:"successes"`
	Failures         int64         `json:"failures"`
	CacheHits        int64         `json:"cache_hits"`
	RateLimited      int64         `json:"rate_limited"`
	Disabled         int64         `json:"disabled"`
	Retries          int64         `json:"retries"`
	TotalLatency     time.Duration `json:"total_latency"`
	AverageLatencyMS float64       `json:"average_latency_ms"`
	LastError        string        `json:"last_error,omitempty"`
}

// SuccessRate is successes over searches made while enabled, 0 before the
// first one
func (s StatsSnapshot) SuccessRate() float64 {
	served := s.Searches - s.Disabled
	if served <= 0 {
		return 0
	}
	return float64(s.Successes) / float64(served)
}

type counters struct {
	mu   sync.Mutex
	snap StatsSnapshot
}

func (c *counters) record(res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snap.Searches++
	if res.Status == StatusDisabled {
		c.snap.Disabled++
		return
	}
	c.snap.TotalLatency += res.Elapsed
	if res.Attempts > 1 {
		c.snap.Retries += int64(res.Attempts - 1)
	}
	switch res.Status {
	case StatusCompleted:
		c.snap.Successes++
		if res.CacheHit {
			c.snap.CacheHits++
		}
	case StatusRateLimited:
		c.snap.RateLimited++
		c.snap.Failures++
		c.snap.LastError = res.Error
	default:
		c.snap.Failures++
		c.snap.LastError = res.Error
	}
}

func (c *counters) snapshot() StatsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snap
	if served := s.Searches - s.Disabled; served > 0 {
		s.AverageLatencyMS = float64(s.TotalLatency.Microseconds()) / 1000 / float64(served)
	}
	return s
}
