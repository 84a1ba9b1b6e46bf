// Package filterjob runs asynchronous keyword filters over a document
// directory: it builds the search index on first use, runs the query, writes
// the result file next to the document, and records the run.
package filterjob

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Request is the payload of the filter-requests topic and the body of
// POST /api/v1/filters. Terms is a shell-quoted keyword string; a leading
// "-" excludes a keyword.
type Request struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
	Terms string `json:"terms"`
}

// Run is the stored record of one filter run.
type Run struct {
	RunID      string              `json:"run_id"`
	Path       string              `json:"path"`
	Terms      string              `json:"terms"`
	Status     Status              `json:"status"`
	Pages      []merger.PageResult `json:"pages,omitempty"`
	Error      string              `json:"error,omitempty"`
	OutputPath string              `json:"output_path,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// Result is published on the filter-results topic when a run finishes.
type Result struct {
	RunID      string              `json:"run_id"`
	Status     Status              `json:"status"`
	Pages      []merger.PageResult `json:"pages"`
	OutputPath string              `json:"output_path,omitempty"`
	Error      string              `json:"error,omitempty"`
	IndexBuilt bool                `json:"index_built"`
	FinishedAt time.Time           `json:"finished_at"`
}

// SubmitResponse is returned by POST /api/v1/filters.
type SubmitResponse struct {
	RunID  string `json:"run_id"`
	Status Status `json:"status"`
}
