package executor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Worker runs exactly one submission at a time to completion and packages
// its outcome. It implements Executor.
//
// FAILURE BOUNDARY:
// Execute never returns an error and never panics. Evaluation errors come
// back from the Session as an unsuccessful Outcome; anything that goes
// wrong in the Worker's own control flow is recovered, appended to the
// captured output and reported as an unsuccessful result.
type Worker struct {
	session Session
	locator ArtifactLocator
	logger  *slog.Logger
}

var _ Executor = (*Worker)(nil)

// NewWorker creates a Worker that drives session and asks locator for the
// produced artifact.
func NewWorker(session Session, locator ArtifactLocator, logger *slog.Logger) *Worker {
	return &Worker{
		session: session,
		locator: locator,
		logger:  logger,
	}
}

// Execute runs req.Code through the session.
//
// Success is true only when the code evaluated without error AND a
// qualifying artifact was found.
func (w *Worker) Execute(_ context.Context, req ExecutionRequest) (*ExecutionResult, error) {
	out := &syncBuffer{}
	began := time.Now()
	start := w.locator.Now()
	res := &ExecutionResult{
		RunID:     req.ID,
		StartedAt: start,
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("error during code execution",
					slog.String("run_id", req.ID),
					slog.Any("panic", r),
				)
				fmt.Fprintf(out, "Error: %v\n", r)
				out.Write(debug.Stack())
				res.ArtifactPath = ""
				res.Success = false
			}
		}()
		w.run(req, start, out, res)
	}()

	res.Output = out.String()
	res.Duration = time.Since(began)
	return res, nil
}

func (w *Worker) run(req ExecutionRequest, start time.Time, out *syncBuffer, res *ExecutionResult) {
	outcome := w.session.Run(req.Code, out)
	if !outcome.Success {
		w.logger.Error("code execution failed",
			slog.String("run_id", req.ID),
			slog.Any("error", outcome.Err),
		)
		return
	}
	w.logger.Debug("code execution successful", slog.String("run_id", req.ID))

	path, found, err := w.locator.Latest(start)
	if err != nil {
		// Lookup failures count as "no artifact".
		w.logger.Error("error finding artifact",
			slog.String("run_id", req.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if !found {
		w.logger.Warn("no artifact found", slog.String("run_id", req.ID))
		return
	}

	w.logger.Debug("found artifact",
		slog.String("run_id", req.ID),
		slog.String("path", path),
	)
	res.ArtifactPath = path
	res.Success = true
}

// syncBuffer is a bytes.Buffer safe for concurrent writers. Executed code
// may print from goroutines it starts itself.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
