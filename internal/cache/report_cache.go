// Package cache holds computed reports for repeatable requests and collapses
// concurrent identical computations into one.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/star/umbra/internal/metrics"
)

// Config holds cache configuration.
type Config struct {
	MaxEntries     int           // 0 disables storage; computations are still shared
	TTL            time.Duration // 0: entries never expire
	ComputeTimeout time.Duration // bound on a shared computation; 0: none
}

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a bounded map of computed values. When full, the oldest entry is
// evicted. Safe for concurrent use.
type Cache[V any] struct {
	config  Config
	logger  *slog.Logger
	mu      sync.RWMutex
	entries map[string]*entry[V]
	group   singleflight.Group
	now     func() time.Time

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an empty cache.
func New[V any](config Config, logger *slog.Logger) *Cache[V] {
	return &Cache[V]{
		config:  config,
		logger:  logger.With("component", "cache"),
		entries: make(map[string]*entry[V]),
		now:     time.Now,
	}
}

// Get returns the value stored under key. Expired entries count as misses
// and are dropped.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.expired(e) {
		c.mu.Lock()
		if cur, still := c.entries[key]; still && cur == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.updateMetrics()
		ok = false
	}

	if ok {
		c.hits.Add(1)
		metrics.RecordCacheLookup("hit")
		return e.value, true
	}

	c.misses.Add(1)
	metrics.RecordCacheLookup("miss")
	var zero V
	return zero, false
}

// Put stores value under key.
func (c *Cache[V]) Put(key string, value V) {
	if c.config.MaxEntries <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = &entry[V]{value: value, storedAt: c.now()}
	removed := c.evictLocked()
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		c.logger.Debug("cache eviction", "entries_removed", removed)
	}
	c.updateMetrics()
}

// GetOrCompute returns the cached value for key, or runs fn once for all
// concurrent callers asking for the same key and stores a successful
// result. Errors are returned to every waiting caller and not stored.
//
// fn runs on a context detached from every caller's cancellation and
// bounded by ComputeTimeout; a caller whose ctx ends stops waiting without
// affecting the others. shared is false only for the caller whose call ran
// fn.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, fn func(context.Context) (V, error)) (value V, shared bool, err error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	var leader bool
	ch := c.group.DoChan(key, func() (any, error) {
		leader = true
		computeCtx := context.WithoutCancel(ctx)
		if c.config.ComputeTimeout > 0 {
			var cancel context.CancelFunc
			computeCtx, cancel = context.WithTimeout(computeCtx, c.config.ComputeTimeout)
			defer cancel()
		}

		v, err := fn(computeCtx)
		if err != nil {
			return v, err
		}
		c.Put(key, v)
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			var zero V
			return zero, !leader, res.Err
		}
		return res.Val.(V), !leader, nil
	case <-ctx.Done():
		var zero V
		return zero, false, ctx.Err()
	}
}

// evictLocked drops expired entries, then the oldest ones until the size
// bound holds. Caller must hold mu.
func (c *Cache[V]) evictLocked() int {
	var removed int
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			removed++
		}
	}

	for len(c.entries) > c.config.MaxEntries {
		var oldestKey string
		var oldest time.Time
		for key, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldest) {
				oldestKey, oldest = key, e.storedAt
			}
		}
		delete(c.entries, oldestKey)
		removed++
	}
	return removed
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.config.TTL > 0 && c.now().Sub(e.storedAt) > c.config.TTL
}

// Len returns the number of stored entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats holds cache statistics.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// Stats returns current cache statistics.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *Cache[V]) updateMetrics() {
	metrics.SetCacheEntries(c.Len())
}
