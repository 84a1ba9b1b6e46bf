package filterjob

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/logger"
)

// Handler serves the filter-run endpoints. Submitted runs are recorded as
// pending and handed to the worker through requests.
type Handler struct {
	store    Store
	requests Publisher
	logger   *slog.Logger
}

func NewHandler(store Store, requests Publisher) *Handler {
	return &Handler{
		store:    store,
		requests: requests,
		logger:   slog.Default().With("component", "filter-handler"),
	}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/filters", h.Submit)
	r.Get("/filters/{runID}", h.Status)
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if err := Validate(&req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": verr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx = logger.WithRunID(ctx, req.RunID)
	log := logger.FromContext(ctx)
	if err := h.store.Create(ctx, req); err != nil {
		log.Error("recording filter run failed", "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "could not record filter run")
		return
	}
	if err := h.requests.Publish(ctx, req.RunID, req); err != nil {
		log.Error("queueing filter run failed", "error", err)
		if ferr := h.store.Fail(ctx, req.RunID, err.Error()); ferr != nil {
			log.Error("marking run failed", "error", ferr)
		}
		h.writeError(w, http.StatusServiceUnavailable, "could not queue filter run")
		return
	}
	log.Info("filter run submitted", "path", req.Path)
	h.writeJSON(w, http.StatusAccepted, SubmitResponse{RunID: req.RunID, Status: StatusPending})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := h.store.Get(r.Context(), runID)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("loading filter run failed", "run_id", runID, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, run)
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
