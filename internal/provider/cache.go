package provider

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/passbi/passbi_travel/internal/models"
)

// ResultCache stores successful route lists by request fingerprint.
// Implementations must hand out copies so callers can't corrupt entries.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]models.Route, bool, error)
	Set(ctx context.Context, key string, routes []models.Route, ttl time.Duration) error
}

type memoryEntry struct {
	routes  []models.Route
	expires time.Time
	seq     uint64
}

// MemoryCache is a bounded in-process ResultCache. When it grows past its
// capacity the oldest tenth of the capacity is evicted.
type MemoryCache struct {
	mu       sync.Mutex
	entries  map[string]memoryEntry
	capacity int
	seq      uint64
	now      func() time.Time
}

// NewMemoryCache creates a cache holding at most capacity entries
// (DefaultCacheSize when capacity is not positive)
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &MemoryCache{
		entries:  make(map[string]memoryEntry),
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns a copy of the cached routes if the entry is still fresh
func (c *MemoryCache) Get(_ context.Context, key string) ([]models.Route, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	routes := models.CloneRoutes(e.routes)
	if routes == nil {
		routes = []models.Route{}
	}
	return routes, true, nil
}

// Set stores a copy of routes for ttl
func (c *MemoryCache) Set(_ context.Context, key string, routes []models.Route, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	c.entries[key] = memoryEntry{
		routes:  models.CloneRoutes(routes),
		expires: c.now().Add(ttl),
		seq:     c.seq,
	}
	if len(c.entries) > c.capacity {
		c.evictOldest()
	}
	return nil
}

// Len returns the number of stored entries, fresh or not
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) evictOldest() {
	n := c.capacity / 10
	if n < 1 {
		n = 1
	}

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return c.entries[keys[i]].seq < c.entries[keys[j]].seq
	})
	for i := 0; i < n && i < len(keys); i++ {
		delete(c.entries, keys[i])
	}
}
