package filterjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/resilience"
)

// Publisher sends messages to a topic; *kafka.Producer implements it.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
}

type Runner struct {
	cfg      config.SearchConfig
	builder  *indexer.Builder
	searcher *searcher.Searcher
	store    Store
	results  Publisher
	retry    resilience.RetryConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewRunner creates a Runner. results and m may be nil.
func NewRunner(cfg config.SearchConfig, b *indexer.Builder, s *searcher.Searcher, store Store, results Publisher, m *metrics.Metrics) *Runner {
	return &Runner{
		cfg:      cfg,
		builder:  b,
		searcher: s,
		store:    store,
		results:  results,
		retry:    resilience.DefaultRetryConfig(),
		metrics:  m,
		logger:   slog.Default().With("component", "filter-runner"),
	}
}

// Run executes one filter request. A failing search is recorded on the run
// and reported in the Result; the returned error is reserved for invalid
// requests and for runs that could not be recorded at all.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(&req); err != nil {
		return nil, err
	}
	ctx = logger.WithRunID(ctx, req.RunID)
	log := logger.FromContext(ctx)

	if err := r.store.MarkRunning(ctx, req); err != nil {
		return nil, err
	}
	log.Info("filter run started", "path", req.Path, "terms", req.Terms)

	start := time.Now()
	res := &Result{RunID: req.RunID}
	pages, built, err := r.execute(ctx, req)
	res.IndexBuilt = built
	res.FinishedAt = time.Now().UTC()
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		res.Pages = []merger.PageResult{}
		if serr := r.store.Fail(ctx, req.RunID, res.Error); serr != nil {
			return nil, errors.Join(err, serr)
		}
		log.Error("filter run failed", "error", err, "duration", time.Since(start))
	} else {
		res.Status = StatusCompleted
		res.Pages = pages
		res.OutputPath = r.OutputPath(req)
		if serr := r.store.Complete(ctx, req.RunID, res.OutputPath, pages); serr != nil {
			return nil, serr
		}
		log.Info("filter run completed", "pages", len(pages), "index_built", built, "duration", time.Since(start))
	}
	if r.metrics != nil {
		r.metrics.FilterJobsTotal.WithLabelValues(string(res.Status)).Inc()
	}
	r.publish(ctx, res)
	return res, nil
}

// OutputPath is the file a completed run writes its pages to.
func (r *Runner) OutputPath(req Request) string {
	return filepath.Join(req.Path, r.cfg.OutputPrefix+req.RunID)
}

func (r *Runner) execute(ctx context.Context, req Request) ([]merger.PageResult, bool, error) {
	built, err := r.ensureIndex(ctx, req.Path)
	if err != nil {
		return nil, built, err
	}
	tokens, err := parser.SplitTerms(req.Terms)
	if err != nil {
		return nil, built, err
	}

	var pages []merger.PageResult
	err = resilience.WithTimeout(ctx, r.cfg.Timeout, "search", func(ctx context.Context) error {
		var serr error
		pages, serr = r.searcher.Search(ctx, req.Path, tokens)
		return serr
	})
	if err != nil {
		return nil, built, err
	}
	if err := writeOutput(r.OutputPath(req), pages); err != nil {
		return nil, built, err
	}
	return pages, built, nil
}

// ensureIndex builds the index of dir when its index directory is missing.
func (r *Runner) ensureIndex(ctx context.Context, dir string) (bool, error) {
	_, err := os.Stat(r.builder.IndexDir(dir))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("checking index: %w", err)
	}
	logger.FromContext(ctx).Info("search index missing, building", "path", dir)
	if _, err := r.builder.Build(ctx, dir); err != nil {
		return false, err
	}
	if err := r.searcher.InvalidateCache(ctx, dir); err != nil {
		logger.FromContext(ctx).Warn("cache invalidation failed", "error", err)
	}
	return true, nil
}

func writeOutput(path string, pages []merger.PageResult) error {
	if pages == nil {
		pages = []merger.PageResult{}
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

func (r *Runner) publish(ctx context.Context, res *Result) {
	if r.results == nil {
		return
	}
	err := resilience.Retry(ctx, "publish-result", r.retry, func(ctx context.Context) error {
		return r.results.Publish(ctx, res.RunID, res)
	})
	if err != nil {
		logger.FromContext(ctx).Error("publishing result failed", "error", err)
	}
}
