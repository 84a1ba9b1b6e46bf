package filterjob

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/postgres"
)

// Store records the lifecycle of filter runs.
type Store interface {
	Create(ctx context.Context, req Request) error
	MarkRunning(ctx context.Context, req Request) error
	Complete(ctx context.Context, runID, outputPath string, pages []merger.PageResult) error
	Fail(ctx context.Context, runID, message string) error
	Get(ctx context.Context, runID string) (*Run, error)
}

// PGStore keeps runs in the filter_runs table created by
// postgres.Client.EnsureSchema.
type PGStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPGStore(db *postgres.Client) *PGStore {
	return &PGStore{
		db:     db,
		logger: slog.Default().With("component", "filter-store"),
	}
}

func (s *PGStore) Create(ctx context.Context, req Request) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO filter_runs (run_id, path, terms, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO NOTHING`,
		req.RunID, req.Path, req.Terms, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("creating run %s: %w", req.RunID, err)
	}
	return nil
}

// MarkRunning also inserts the run when the request arrived without passing
// through Create.
func (s *PGStore) MarkRunning(ctx context.Context, req Request) error {
	_, err := s.db.DB.ExecContext(ctx,
		`INSERT INTO filter_runs (run_id, path, terms, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE
		SET status = EXCLUDED.status, error = NULL, updated_at = NOW()`,
		req.RunID, req.Path, req.Terms, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("marking run %s running: %w", req.RunID, err)
	}
	return nil
}

func (s *PGStore) Complete(ctx context.Context, runID, outputPath string, pages []merger.PageResult) error {
	if pages == nil {
		pages = []merger.PageResult{}
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return fmt.Errorf("marshaling pages: %w", err)
	}
	return s.update(ctx, runID,
		`UPDATE filter_runs
		SET status = $2, result = $3, output_path = $4, updated_at = NOW()
		WHERE run_id = $1`,
		StatusCompleted, data, outputPath,
	)
}

func (s *PGStore) Fail(ctx context.Context, runID, message string) error {
	return s.update(ctx, runID,
		`UPDATE filter_runs SET status = $2, error = $3, updated_at = NOW() WHERE run_id = $1`,
		StatusFailed, message,
	)
}

func (s *PGStore) update(ctx context.Context, runID, query string, args ...any) error {
	res, err := s.db.DB.ExecContext(ctx, query, append([]any{runID}, args...)...)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, runID)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, runID string) (*Run, error) {
	var (
		run        Run
		result     []byte
		errMsg     sql.NullString
		outputPath sql.NullString
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT run_id, path, terms, status, result, error, output_path, created_at, updated_at
		FROM filter_runs WHERE run_id = $1`, runID,
	).Scan(&run.RunID, &run.Path, &run.Terms, &run.Status, &result, &errMsg, &outputPath, &run.CreatedAt, &run.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	run.Error = errMsg.String
	run.OutputPath = outputPath.String
	if len(result) > 0 {
		if err := json.Unmarshal(result, &run.Pages); err != nil {
			s.logger.Warn("discarding unreadable run result", "run_id", runID, "error", err)
		}
	}
	return &run, nil
}

// MemoryStore is a process-local Store used when Postgres is disabled.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*Run),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Create(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[req.RunID]; ok {
		return nil
	}
	now := s.now()
	s.runs[req.RunID] = &Run{
		RunID:     req.RunID,
		Path:      req.Path,
		Terms:     req.Terms,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) MarkRunning(ctx context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	run, ok := s.runs[req.RunID]
	if !ok {
		run = &Run{RunID: req.RunID, Path: req.Path, Terms: req.Terms, CreatedAt: now}
		s.runs[req.RunID] = run
	}
	run.Status = StatusRunning
	run.Error = ""
	run.UpdatedAt = now
	return nil
}

func (s *MemoryStore) Complete(ctx context.Context, runID, outputPath string, pages []merger.PageResult) error {
	return s.modify(runID, func(run *Run) {
		run.Status = StatusCompleted
		run.Pages = pages
		run.OutputPath = outputPath
	})
}

func (s *MemoryStore) Fail(ctx context.Context, runID, message string) error {
	return s.modify(runID, func(run *Run) {
		run.Status = StatusFailed
		run.Error = message
	})
}

func (s *MemoryStore) modify(runID string, fn func(*Run)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, runID)
	}
	fn(run)
	run.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrRunNotFound, runID)
	}
	cp := *run
	cp.Pages = append([]merger.PageResult(nil), run.Pages...)
	return &cp, nil
}
