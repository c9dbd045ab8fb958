// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package frames

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/tempy/internal/cache"
	"github.com/ManuGH/tempy/internal/log"
	"github.com/ManuGH/tempy/internal/metrics"
)

const cacheKeyPrefix = "tempy:frames:"

// CachedExtractor serves repeated requests from a cache and coalesces
// identical in-flight requests into one decode. Short results are never
// cached: the source may still be growing.
type CachedExtractor struct {
	next     Extractor
	cache    cache.Cache
	ttl      time.Duration
	geometry Geometry
	group    singleflight.Group
	stat     func(string) (os.FileInfo, error)

	mu     sync.Mutex
	byPath map[string]map[string]struct{}
}

var _ Extractor = (*CachedExtractor)(nil)

// NewCachedExtractor wraps next. g must be the geometry next produces.
func NewCachedExtractor(next Extractor, c cache.Cache, g Geometry, ttl time.Duration) *CachedExtractor {
	return &CachedExtractor{
		next:     next,
		cache:    c,
		ttl:      ttl,
		geometry: g,
		stat:     os.Stat,
		byPath:   make(map[string]map[string]struct{}),
	}
}

// Extract returns a cached result when the file is unchanged since it was
// stored. The shared decode keeps running if one of several waiting callers
// goes away; each caller still returns as soon as its own ctx ends.
func (c *CachedExtractor) Extract(ctx context.Context, req Request) (Result, error) {
	fi, err := c.stat(req.Path)
	if err != nil {
		// Let the wrapped extractor produce the canonical error.
		return c.next.Extract(ctx, req)
	}
	key := c.key(req, fi)
	logger := log.WithComponentFromContext(ctx, "frames.cache")

	if b, ok := c.cache.Get(ctx, key); ok {
		var res Result
		if err := json.Unmarshal(b, &res); err == nil {
			res.State = StateCompleted
			logger.Debug().Str(log.FieldPath, req.Path).Msg("serving frames from cache")
			return res, nil
		}
		logger.Warn().Str("key", key).Msg("dropping undecodable cache entry")
		c.cache.Delete(ctx, key)
	}

	ch := c.group.DoChan(key, func() (any, error) {
		res, err := c.next.Extract(context.WithoutCancel(ctx), req)
		if err != nil || res.Short {
			return res, err
		}
		c.store(context.WithoutCancel(ctx), req.Path, key, res)
		return res, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Shared {
			metrics.CacheCoalescedTotal.Inc()
		}
		if r.Err != nil {
			return Result{}, r.Err
		}
		return r.Val.(Result), nil
	}
}

// InvalidatePath drops every cached result of path that this process stored.
// Entries written by other processes are keyed by size and mtime and so never
// match a changed file; they age out by TTL.
func (c *CachedExtractor) InvalidatePath(ctx context.Context, path string) int {
	c.mu.Lock()
	keys := make([]string, 0, len(c.byPath[path]))
	for k := range c.byPath[path] {
		keys = append(keys, k)
	}
	delete(c.byPath, path)
	c.mu.Unlock()

	if len(keys) > 0 {
		c.cache.Delete(ctx, keys...)
		logger := log.WithComponentFromContext(ctx, "frames.cache")
		logger.Debug().
			Str(log.FieldPath, path).
			Int("keys", len(keys)).
			Msg("invalidated cached frames")
	}
	return len(keys)
}

func (c *CachedExtractor) store(ctx context.Context, path, key string, res Result) {
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	c.cache.Set(ctx, key, b, c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	keys, ok := c.byPath[path]
	if !ok {
		keys = make(map[string]struct{})
		c.byPath[path] = keys
	}
	keys[key] = struct{}{}
}

func (c *CachedExtractor) key(req Request, fi os.FileInfo) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%s\x00%d\x00%d\x00%d\x00%d\x00%s@%d",
		req.Path, fi.Size(), fi.ModTime().UnixNano(),
		req.StartFrame, req.Count,
		c.geometry.Resolution(), c.geometry.FPS)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}
