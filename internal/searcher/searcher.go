// Package searcher answers keyword queries against the index of one source
// directory: it parses the keywords, evaluates the plan on the persisted
// index, and aggregates the hits into ranked pages.
package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/metrics"
)

type Searcher struct {
	cfg      config.IndexerConfig
	executor *executor.Executor
	cache    *cache.QueryCache
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Searcher. The cache and metrics are optional.
func New(cfg config.IndexerConfig, m *metrics.Metrics, queryCache *cache.QueryCache) *Searcher {
	return &Searcher{
		cfg:      cfg,
		executor: executor.New(),
		cache:    queryCache,
		metrics:  m,
		logger:   slog.Default().With("component", "searcher"),
	}
}

// Search parses tokens and runs them against the index of sourceDir. A query
// without included terms returns an empty, non-nil result without touching
// the index.
func (s *Searcher) Search(ctx context.Context, sourceDir string, tokens []string) ([]merger.PageResult, error) {
	return s.SearchPlan(ctx, sourceDir, parser.Parse(tokens))
}

func (s *Searcher) SearchPlan(ctx context.Context, sourceDir string, plan *parser.QueryPlan) ([]merger.PageResult, error) {
	start := time.Now()
	if plan.IsNoop() {
		s.observe("noop", "none", start, 0)
		return []merger.PageResult{}, nil
	}

	indexDir := filepath.Join(sourceDir, s.cfg.DirName)
	compute := func() ([]merger.PageResult, error) {
		return s.evaluate(ctx, indexDir, plan)
	}

	var (
		pages    []merger.PageResult
		err      error
		cacheHit bool
	)
	if s.cache != nil {
		var manifest *indexer.Manifest
		manifest, err = indexer.ReadManifest(indexDir)
		if err == nil {
			pages, cacheHit, err = s.cache.GetOrCompute(ctx, sourceDir, manifest.BuildID, plan, compute)
		}
	} else {
		pages, err = compute()
	}

	cacheStatus := "disabled"
	if s.cache != nil {
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	}
	if err != nil {
		s.observe("error", cacheStatus, start, 0)
		return nil, err
	}
	resultType := "hit"
	if len(pages) == 0 {
		resultType = "zero_result"
	}
	s.observe(resultType, cacheStatus, start, len(pages))
	s.logger.Info("search completed",
		"source", sourceDir,
		"query", plan.Canonical(),
		"pages", len(pages),
		"cache", cacheStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return pages, nil
}

// InvalidateCache drops cached results for sourceDir; it is a no-op without
// a cache.
func (s *Searcher) InvalidateCache(ctx context.Context, sourceDir string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, sourceDir)
}

func (s *Searcher) evaluate(ctx context.Context, indexDir string, plan *parser.QueryPlan) ([]merger.PageResult, error) {
	reader, err := segment.OpenReader(filepath.Join(indexDir, segment.FileName))
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer reader.Close()

	hits, err := s.executor.Evaluate(ctx, plan, reader)
	if err != nil {
		return nil, fmt.Errorf("evaluating query: %w", err)
	}
	return merger.Aggregate(hits)
}

func (s *Searcher) observe(resultType, cacheStatus string, start time.Time, pages int) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType != "error" && resultType != "noop" {
		s.metrics.SearchResultsCount.Observe(float64(pages))
	}
	switch cacheStatus {
	case "hit":
		s.metrics.CacheHitsTotal.Inc()
	case "miss":
		s.metrics.CacheMissesTotal.Inc()
	}
}
