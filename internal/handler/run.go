package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/model"
)

// RunService is the part of service.RunService the HTTP API uses.
type RunService interface {
	Submit(ctx context.Context, code string, source model.RunSource) (*model.Run, error)
	Rerun(ctx context.Context, id string) (*model.Run, error)
	Wait(ctx context.Context, id string) (*model.Run, error)
	Get(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, limit, offset int, status model.RunStatus) ([]model.Run, error)
	Delete(ctx context.Context, id string) error
}

// DefaultWaitTimeout bounds GET /api/runs/{id}/wait when the caller gives
// no timeout.
const DefaultWaitTimeout = 60 * time.Second

// RunHandler exposes code execution and the run history.
//
// ROUTES:
//
//	POST   /api/execute           → submit code, 202 {"id": ...}
//	GET    /api/runs              → list runs (?limit=&offset=&status=)
//	GET    /api/runs/{id}         → one run
//	GET    /api/runs/{id}/wait    → block until the run finishes (?timeout=30s)
//	POST   /api/runs/{id}/rerun   → execute a run's code again
//	DELETE /api/runs/{id}         → remove a finished run
type RunHandler struct {
	runs   RunService
	logger *slog.Logger
}

// NewRunHandler creates a RunHandler.
func NewRunHandler(runs RunService, logger *slog.Logger) *RunHandler {
	return &RunHandler{runs: runs, logger: logger}
}

type executeRequest struct {
	Code string `json:"code"`
}

// SubmitResponse is returned when a run is accepted.
type SubmitResponse struct {
	ID     string          `json:"id"`
	Status model.RunStatus `json:"status"`
}

// HandleExecute submits code. The run executes in the background; poll it
// or call the wait endpoint for the result.
func (h *RunHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body")
		writeError(w, err)
		return
	}

	run, err := h.runs.Submit(r.Context(), req.Code, model.SourceAPI)
	if err != nil {
		h.logger.Warn("execution rejected", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: run.ID, Status: run.Status})
}

// HandleList returns runs newest first.
func (h *RunHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	runs, err := h.runs.List(r.Context(), limit, offset, model.RunStatus(q.Get("status")))
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleGet returns a single run.
func (h *RunHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleWait blocks until the run has finished, then returns it. A run
// still going when the timeout passes is returned as it stands.
func (h *RunHandler) HandleWait(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	timeout := DefaultWaitTimeout
	if raw := r.URL.Query().Get("timeout"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			writeError(w, apperror.ValidationFailed("timeout", "timeout must be a positive duration like 30s"))
			return
		}
		timeout = d
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	run, err := h.runs.Wait(ctx, id)
	if err != nil && ctx.Err() != nil && r.Context().Err() == nil {
		// Timed out: report the current state instead of an error.
		run, err = h.runs.Get(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleRerun executes an earlier run's code again.
func (h *RunHandler) HandleRerun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Rerun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, SubmitResponse{ID: run.ID, Status: run.Status})
}

// HandleDelete removes a finished run.
func (h *RunHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.runs.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(raw, field string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(field, field+" must be an integer")
	}
	return n, nil
}
