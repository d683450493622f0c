package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/mapchat/internal/viewer"
)

// Display is the part of viewer.Viewer the HTTP API uses.
type Display interface {
	http.Handler
	State() viewer.State
}

// ViewHandler exposes the artifact on display.
//
//	GET /view     → the artifact itself (404 when nothing is displayed)
//	GET /api/view → {"status", "lastRunId", "artifact"}
type ViewHandler struct {
	display Display
	logger  *slog.Logger
}

// NewViewHandler creates a ViewHandler.
func NewViewHandler(display Display, logger *slog.Logger) *ViewHandler {
	return &ViewHandler{display: display, logger: logger}
}

// HandleView serves the displayed artifact.
func (h *ViewHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	h.display.ServeHTTP(w, r)
}

// HandleState returns the viewer's status and artifact metadata.
func (h *ViewHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.display.State())
}
