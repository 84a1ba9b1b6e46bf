// Package cache memoizes search results in Redis. Keys include the build ID
// of the index they were computed from, so a rebuild never serves stale
// pages.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/parser"
)

const keyPrefix = "search:"

// Store is the key-value backend of the cache; *redis.Client implements it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, key string) ([]merger.PageResult, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Error("cache get failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	var pages []merger.PageResult
	if err := json.Unmarshal(data, &pages); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return pages, true
}

func (c *QueryCache) Set(ctx context.Context, key string, pages []merger.PageResult) {
	data, err := json.Marshal(pages)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached pages for the plan on the given build, or
// computes and stores them. Concurrent callers for the same key share one
// computation.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	sourceDir string,
	buildID string,
	plan *parser.QueryPlan,
	computeFn func() ([]merger.PageResult, error),
) ([]merger.PageResult, bool, error) {
	key := BuildKey(sourceDir, buildID, plan)
	if pages, ok := c.Get(ctx, key); ok {
		return pages, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if pages, ok := c.Get(ctx, key); ok {
			return pages, nil
		}
		pages, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, key, pages)
		return pages, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]merger.PageResult), false, nil
}

// Invalidate drops every cached result of one source directory.
func (c *QueryCache) Invalidate(ctx context.Context, sourceDir string) error {
	pattern := keyPrefix + dirHash(sourceDir) + ":*"
	deleted, err := c.store.FlushByPattern(ctx, pattern)
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "source", sourceDir, "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// BuildKey derives the cache key of a plan evaluated on one build of the
// index of sourceDir.
func BuildKey(sourceDir, buildID string, plan *parser.QueryPlan) string {
	hash := sha256.Sum256([]byte(plan.Canonical()))
	return fmt.Sprintf("%s%s:%s:%x", keyPrefix, dirHash(sourceDir), buildID, hash[:16])
}

func dirHash(sourceDir string) string {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		abs = filepath.Clean(sourceDir)
	}
	hash := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("%x", hash[:8])
}
