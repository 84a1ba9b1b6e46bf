// Package handler exposes synchronous search over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/resilience"
)

// Searcher is satisfied by *searcher.Searcher.
type Searcher interface {
	Search(ctx context.Context, sourceDir string, tokens []string) ([]merger.PageResult, error)
}

type Handler struct {
	searcher Searcher
	timeout  time.Duration
	logger   *slog.Logger
}

func New(s Searcher, timeout time.Duration) *Handler {
	return &Handler{
		searcher: s,
		timeout:  timeout,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/search", h.Search)
}

// Search handles GET /search?path=<dir>&q=<terms>. q uses the same quoting
// rules as filter requests.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	path, tokens, err := parseQuery(r)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), err.Error())
		return
	}

	var pages []merger.PageResult
	err = resilience.WithTimeout(r.Context(), h.timeout, "search", func(ctx context.Context) error {
		var serr error
		pages, serr = h.searcher.Search(ctx, path, tokens)
		return serr
	})
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("search failed", "path", path, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}
	if pages == nil {
		pages = []merger.PageResult{}
	}
	h.writeJSON(w, http.StatusOK, pages)
}

func parseQuery(r *http.Request) (string, []string, error) {
	path := r.URL.Query().Get("path")
	if path == "" || !filepath.IsAbs(path) {
		return "", nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query parameter 'path' must be an absolute directory")
	}
	tokens, err := parser.SplitTerms(r.URL.Query().Get("q"))
	if err != nil {
		return "", nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q': %v", err)
	}
	return filepath.Clean(path), tokens, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
