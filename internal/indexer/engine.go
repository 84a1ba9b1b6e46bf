package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/normalizer"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/page"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/metrics"
)

// ManifestName is the file in the index directory that describes a build.
const ManifestName = "manifest.json"

// Manifest records what a build produced. BuildID changes on every build
// and keys cached query results.
type Manifest struct {
	BuildID   string    `json:"build_id"`
	CreatedAt time.Time `json:"created_at"`
	Pages     int       `json:"pages"`
	Units     int       `json:"units"`
	Terms     int       `json:"terms"`
	MaxNGram  int       `json:"max_ngram"`
}

// BuildReport summarises a finished build.
type BuildReport struct {
	Manifest
	IndexDir string        `json:"index_dir"`
	Skipped  int           `json:"skipped_pages"`
	Duration time.Duration `json:"duration"`
}

// Builder rebuilds the search index of a source directory from its page
// files. A Builder holds no per-build state and can be reused.
type Builder struct {
	cfg     config.IndexerConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewBuilder(cfg config.IndexerConfig, m *metrics.Metrics) *Builder {
	return &Builder{
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// IndexDir returns the index directory for a source directory.
func (b *Builder) IndexDir(sourceDir string) string {
	return filepath.Join(sourceDir, b.cfg.DirName)
}

// Build indexes every page file of sourceDir and replaces the previous index.
// Page files are processed by a bounded worker group; nothing is written
// until all of them have been indexed. On any page failure the build returns
// the joined per-file errors and the previous index directory is removed
// but no new one is installed.
func (b *Builder) Build(ctx context.Context, sourceDir string) (*BuildReport, error) {
	start := time.Now()
	report, err := b.build(ctx, sourceDir)
	if b.metrics != nil {
		status := "success"
		if err != nil {
			status = "failed"
		}
		b.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
		b.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		b.logger.Error("index build failed", "source", sourceDir, "error", err)
		return nil, err
	}
	report.Duration = time.Since(start)
	b.logger.Info("index build complete",
		"source", sourceDir,
		"build_id", report.BuildID,
		"pages", report.Pages,
		"units", report.Units,
		"terms", report.Terms,
		"duration", report.Duration,
	)
	return report, nil
}

func (b *Builder) build(ctx context.Context, sourceDir string) (*BuildReport, error) {
	indexDir := b.IndexDir(sourceDir)
	if err := os.RemoveAll(indexDir); err != nil {
		return nil, fmt.Errorf("removing previous index: %w", err)
	}
	files, err := page.List(sourceDir)
	if err != nil {
		return nil, err
	}

	mem := index.NewMemoryIndex(normalizer.MaxNGram)
	var (
		mu      sync.Mutex
		errs    []error
		skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers())
	for _, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			indexed, err := b.indexPage(mem, f)
			if err != nil {
				err = fmt.Errorf("page %s: %w", filepath.Base(f.Path), err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return err
			}
			if !indexed {
				mu.Lock()
				skipped++
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if len(errs) == 0 {
			return nil, fmt.Errorf("index build cancelled: %w", err)
		}
		return nil, fmt.Errorf("indexing %s: %w", sourceDir, errors.Join(errs...))
	}

	manifest := Manifest{
		BuildID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Pages:     len(files),
		MaxNGram:  normalizer.MaxNGram,
	}
	if err := b.install(mem, indexDir, &manifest); err != nil {
		return nil, err
	}
	return &BuildReport{
		Manifest: manifest,
		IndexDir: indexDir,
		Skipped:  skipped,
	}, nil
}

// indexPage loads one page file and adds its segments to the memory index.
// It reports false when the page has no content field.
func (b *Builder) indexPage(mem *index.MemoryIndex, f page.File) (bool, error) {
	doc, err := page.Load(f)
	if err != nil {
		return false, err
	}
	if b.metrics != nil {
		b.metrics.PagesIndexedTotal.Inc()
	}
	if !doc.HasContent {
		b.logger.Debug("page has no content, skipping", "page", doc.Page)
		return false, nil
	}
	units := 0
	for _, seg := range doc.Segments {
		fields := segmentFields(seg)
		if fields == nil {
			continue
		}
		added, err := mem.AddUnit(doc.Page, seg.Index, fields)
		if err != nil {
			return false, err
		}
		if added {
			units++
		}
	}
	if b.metrics != nil {
		b.metrics.UnitsIndexedTotal.Add(float64(units))
	}
	b.logger.Debug("page indexed", "page", doc.Page, "units", units, "mem_size", mem.Size())
	return true, nil
}

// segmentFields returns the normalized field text of a segment, or nil for
// kinds that are not indexed.
func segmentFields(seg page.Segment) map[string]string {
	switch seg.Kind {
	case page.KindText:
		return map[string]string{index.FieldText: normalizer.Normalize(seg.Text)}
	case page.KindTable:
		return map[string]string{index.FieldTable: page.FlattenTable(seg.Rows, normalizer.Normalize)}
	default:
		return nil
	}
}

// install writes the segment and manifest into a temporary sibling directory
// and renames it into place.
func (b *Builder) install(mem *index.MemoryIndex, indexDir string, manifest *Manifest) error {
	tmpDir, err := os.MkdirTemp(filepath.Dir(indexDir), "."+filepath.Base(indexDir)+"-")
	if err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	entries := mem.Snapshot()
	units := mem.Units()
	if _, err := segment.NewWriter(tmpDir).Write(entries, units); err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	manifest.Units = len(units)
	manifest.Terms = len(entries)
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, ManifestName), data, 0644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := os.RemoveAll(indexDir); err != nil {
		return fmt.Errorf("removing previous index: %w", err)
	}
	if err := os.Rename(tmpDir, indexDir); err != nil {
		return fmt.Errorf("installing index: %w", err)
	}
	return nil
}

func (b *Builder) workers() int {
	if b.cfg.Workers <= 0 {
		return 1
	}
	return b.cfg.Workers
}

// ReadManifest loads the manifest of an index directory.
func ReadManifest(indexDir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(indexDir, ManifestName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrIndexNotFound, indexDir)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parsing manifest: %v", apperrors.ErrCorruptIndex, err)
	}
	return &m, nil
}
