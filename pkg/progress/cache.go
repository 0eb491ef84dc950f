// Package progress implements the Progress Cache (C7): a single
// process-wide, TTL-bounded map of run-scoped state objects keyed at
// three granularities (all / host / group).
package progress

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/google/uuid"

	"github.com/cuemby/tugtainer/pkg/metrics"
	"github.com/cuemby/tugtainer/pkg/types"
)

const (
	defaultTTL             = 10 * time.Minute
	defaultCleanupInterval = time.Minute
	defaultCapacity        = 256

	// AllKey is the fixed key for the global "all hosts" run.
	AllKey = "all"
)

// HostKey builds the progress cache key for one host.
func HostKey(hostID, hostName string) string {
	return hostID + ":" + hostName
}

// GroupKey builds the progress cache key for one group within a host.
func GroupKey(hostKey, groupName string) string {
	return hostKey + ":" + groupName
}

// NewRunID mints a fresh run identifier for correlating log lines to one
// progress entry (not itself a cache key).
func NewRunID() string {
	return uuid.NewString()
}

// Cache is the process-wide progress map. It wraps go-cache for TTL
// expiry and layers a soft capacity cap on top, since go-cache has no
// built-in eviction beyond TTL.
type Cache struct {
	mu       sync.Mutex
	store    *gocache.Cache
	order    []string // insertion order, oldest first, for capacity eviction
	capacity int
}

// Option configures a Cache.
type Option func(*Cache)

// WithCapacity overrides the default soft capacity.
func WithCapacity(n int) Option {
	return func(c *Cache) { c.capacity = n }
}

// New builds a Cache with TTL 600s and a 60s cleanup interval, per spec.
func New(opts ...Option) *Cache {
	c := &Cache{
		store:    gocache.New(defaultTTL, defaultCleanupInterval),
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.store.OnEvicted(func(key string, _ any) {
		c.mu.Lock()
		c.removeFromOrder(key)
		c.mu.Unlock()
	})
	return c
}

// Get returns the entry for key, or (nil, false) if no run is active
// there (missing or expired).
func (c *Cache) Get(key string) (*types.Progress, bool) {
	v, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	p, ok := v.(*types.Progress)
	return p, ok
}

// Set replaces the entry for key wholesale.
func (c *Cache) Set(key string, p *types.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.store.Get(key)
	c.store.Set(key, p, gocache.DefaultExpiration)
	if !existed {
		c.order = append(c.order, key)
		c.evictOverCapacity()
	}
	metrics.ProgressCacheSize.Set(float64(c.store.ItemCount()))
}

// Update merges fn's mutation into the existing entry for key, creating
// an idle entry first if one doesn't exist. fn must not retain p beyond
// the call.
func (c *Cache) Update(key string, fn func(p *types.Progress)) {
	c.mu.Lock()
	v, ok := c.store.Get(key)
	var p *types.Progress
	if ok {
		p, ok = v.(*types.Progress)
	}
	if !ok || p == nil {
		p = &types.Progress{Status: types.StatusIdle}
		c.order = append(c.order, key)
	}
	fn(p)
	c.store.Set(key, p, gocache.DefaultExpiration)
	if !ok {
		c.evictOverCapacity()
	}
	c.mu.Unlock()
	metrics.ProgressCacheSize.Set(float64(c.store.ItemCount()))
}

// TryStart atomically checks that key is absent, idle, or terminal
// (DONE/ERROR) and, if so, sets it to status and returns true. Otherwise it leaves the
// entry untouched and returns false ("already running").
func (c *Cache) TryStart(key string, status types.RunStatus) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.store.Get(key)
	if ok {
		if p, ok := v.(*types.Progress); ok && p != nil {
			if p.Status != types.StatusDone && p.Status != types.StatusError && p.Status != types.StatusIdle {
				return false
			}
		}
	}
	existed := ok
	c.store.Set(key, &types.Progress{Status: status}, gocache.DefaultExpiration)
	if !existed {
		c.order = append(c.order, key)
		c.evictOverCapacity()
	}
	metrics.ProgressCacheSize.Set(float64(c.store.ItemCount()))
	return true
}

// evictOverCapacity drops the oldest entries until the cache is at or
// under capacity. Caller must hold c.mu; it is released around each
// store.Delete, whose OnEvicted callback takes c.mu itself.
func (c *Cache) evictOverCapacity() {
	for len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		c.mu.Unlock()
		c.store.Delete(oldest)
		c.mu.Lock()
		metrics.ProgressCacheEvictionsTotal.Inc()
	}
}

// removeFromOrder drops key from the insertion-order slice after a TTL
// eviction. Caller must hold c.mu.
func (c *Cache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
