// Package viewer holds the artifact currently on display and serves it.
//
// It replaces the desktop map panel: results come in from the execution
// coordinator, and the latest good artifact is served over HTTP.
package viewer

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sakif/mapchat/internal/executor"
)

// Status texts shown alongside the artifact.
const (
	StatusReady    = "Ready"
	StatusComplete = "Visualization complete"
	StatusFailed   = "Execution failed"
)

// Artifact describes the file on display.
type Artifact struct {
	RunID     string    `json:"runId"`
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// State is the viewer's externally visible state.
type State struct {
	Status    string    `json:"status"`
	LastRunID string    `json:"lastRunId,omitempty"`
	Artifact  *Artifact `json:"artifact,omitempty"`
}

// Viewer tracks the displayed artifact.
type Viewer struct {
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	status    string
	lastRunID string
	current   *Artifact
}

// New creates an empty Viewer.
func New(logger *slog.Logger) *Viewer {
	return &Viewer{
		logger: logger,
		now:    time.Now,
		status: StatusReady,
	}
}

// Show is an executor.Listener. A successful result whose artifact still
// exists replaces the displayed artifact; anything else leaves the previous
// one on display and only updates the status.
func (v *Viewer) Show(res executor.ExecutionResult) {
	ok := res.Success && res.ArtifactPath != ""
	if ok {
		if _, err := os.Stat(res.ArtifactPath); err != nil {
			v.logger.Warn("artifact vanished before display",
				slog.String("run_id", res.RunID),
				slog.String("path", res.ArtifactPath),
			)
			ok = false
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastRunID = res.RunID
	if !ok {
		v.logger.Debug("code execution failed or no artifact generated", slog.String("run_id", res.RunID))
		v.status = StatusFailed
		return
	}

	v.logger.Debug("updating displayed artifact",
		slog.String("run_id", res.RunID),
		slog.String("path", res.ArtifactPath),
	)
	v.status = StatusComplete
	v.current = &Artifact{
		RunID:     res.RunID,
		Path:      res.ArtifactPath,
		UpdatedAt: v.now(),
	}
}

// Current returns the displayed artifact, if any.
func (v *Viewer) Current() (Artifact, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.current == nil {
		return Artifact{}, false
	}
	return *v.current, true
}

// State returns a snapshot of the viewer.
func (v *Viewer) State() State {
	v.mu.RLock()
	defer v.mu.RUnlock()

	st := State{Status: v.status, LastRunID: v.lastRunID}
	if v.current != nil {
		a := *v.current
		st.Artifact = &a
	}
	return st
}

// ServeHTTP serves the displayed artifact, or 404 when there is none.
func (v *Viewer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a, ok := v.Current()
	if !ok {
		http.Error(w, "no artifact to display", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, a.Path)
}
