// SPDX-License-Identifier: MIT

// Package cache provides byte-oriented TTL caches for extraction results.
// Backends never return errors from Get or Set: a failing backend degrades to
// a miss and is logged.
package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tempy/internal/metrics"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendNone   = "none"
)

// Cache stores opaque byte values with expiration.
type Cache interface {
	// Get returns the value for key, or false if it is missing or expired.
	Get(ctx context.Context, key string) ([]byte, bool)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string)
	// Stats returns counters since creation.
	Stats() Stats
	// Close releases background work and connections.
	Close() error
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	CurrentSize int
}

// Config selects and configures a backend.
type Config struct {
	Backend         string
	CleanupInterval time.Duration // memory janitor / badger value log GC
	Redis           RedisConfig
	BadgerDir       string
}

// New opens the configured backend.
func New(cfg Config, logger zerolog.Logger) (Cache, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryCache(cfg.CleanupInterval), nil
	case BackendRedis:
		c, err := NewRedisCache(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendBadger:
		c, err := NewBadgerCache(cfg.BadgerDir, cfg.CleanupInterval, logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendNone:
		return NewNoOpCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %q", cfg.Backend)
	}
}

// counters is shared by all backends.
type counters struct {
	backend   string
	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	evictions atomic.Int64
}

func (c *counters) hit() {
	c.hits.Add(1)
	metrics.CacheRequestsTotal.WithLabelValues(c.backend, "hit").Inc()
}

func (c *counters) miss() {
	c.misses.Add(1)
	metrics.CacheRequestsTotal.WithLabelValues(c.backend, "miss").Inc()
}

func (c *counters) snapshot(size int) Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Evictions:   c.evictions.Load(),
		CurrentSize: size,
	}
}

type entry struct {
	value      []byte
	expiration time.Time
}

func (e *entry) isExpired(now time.Time) bool {
	return now.After(e.expiration)
}

// memoryCache is an in-process Cache.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	stats   counters
	janitor *janitor
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache. A positive cleanupInterval
// starts a janitor that drops expired entries; Close stops it.
func NewMemoryCache(cleanupInterval time.Duration) Cache {
	c := &memoryCache{
		entries: make(map[string]*entry),
		stats:   counters{backend: BackendMemory},
		now:     time.Now,
	}
	if cleanupInterval > 0 {
		c.janitor = newJanitor(cleanupInterval)
		go c.janitor.run(func() { c.deleteExpired() })
	}
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	e, found := c.entries[key]
	c.mu.RUnlock()

	if !found || e.isExpired(c.now()) {
		c.stats.miss()
		return nil, false
	}
	c.stats.hit()
	return e.value, true
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	c.entries[key] = &entry{value: stored, expiration: c.now().Add(ttl)}
	c.mu.Unlock()
	c.stats.sets.Add(1)
}

func (c *memoryCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
}

func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.snapshot(len(c.entries))
}

func (c *memoryCache) Close() error {
	if c.janitor != nil {
		c.janitor.stop()
	}
	return nil
}

// deleteExpired removes expired entries and returns how many were dropped.
func (c *memoryCache) deleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	count := 0
	for key, e := range c.entries {
		if e.isExpired(now) {
			delete(c.entries, key)
			count++
		}
	}
	c.stats.evictions.Add(int64(count))
	return count
}

// janitor runs a cleanup func periodically until stopped.
type janitor struct {
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

func newJanitor(interval time.Duration) *janitor {
	return &janitor{interval: interval, done: make(chan struct{}), stopped: make(chan struct{})}
}

func (j *janitor) run(fn func()) {
	defer close(j.stopped)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fn()
		case <-j.done:
			return
		}
	}
}

// stop ends run and waits for it to return. Safe to call more than once.
func (j *janitor) stop() {
	j.once.Do(func() { close(j.done) })
	<-j.stopped
}

// noOpCache disables caching.
type noOpCache struct{}

// NewNoOpCache creates a cache that stores nothing.
func NewNoOpCache() Cache {
	return noOpCache{}
}

func (noOpCache) Get(context.Context, string) ([]byte, bool)         { return nil, false }
func (noOpCache) Set(context.Context, string, []byte, time.Duration) {}
func (noOpCache) Delete(context.Context, ...string)                  {}
func (noOpCache) Stats() Stats                                       { return Stats{} }
func (noOpCache) Close() error                                       { return nil }
