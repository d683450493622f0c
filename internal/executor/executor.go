// Package executor runs model-generated Go code against a long-lived
// interpreter session and reports what the code printed and which artifact
// file it produced.
//
// THE PIECES:
//
//	Coordinator  → owns the single execution slot, preempts, publishes results
//	Worker       → runs one submission to completion (implements Executor)
//	Session      → the persistent interpreter (see executor/interp)
//	ArtifactLocator → finds the file the code wrote (see executor/artifact)
//
// The Session and ArtifactLocator are interfaces so the Worker can be tested
// without a real interpreter or file system, the same way handler tests use
// a mock Executor.
package executor

import (
	"context"
	"io"
	"time"
)

// ExecutionRequest represents a request to execute Go code.
// ID is assigned by the Coordinator; callers only set Code.
type ExecutionRequest struct {
	ID   string `json:"id,omitempty"`
	Code string `json:"code"`
}

// ExecutionResult represents the output and status of one execution.
// It is created exactly once per request and never mutated afterwards.
type ExecutionResult struct {
	RunID string `json:"runId"`
	// Output holds everything the code wrote to stdout/stderr, followed by
	// diagnostic text when evaluation or orchestration failed.
	Output string `json:"output"`
	// ArtifactPath is empty when no qualifying artifact was found.
	ArtifactPath string        `json:"artifactPath,omitempty"`
	Success      bool          `json:"success"`
	StartedAt    time.Time     `json:"startedAt"`
	Duration     time.Duration `json:"duration"`
}

// HasArtifact reports whether the run produced an artifact.
func (r ExecutionResult) HasArtifact() bool {
	return r.ArtifactPath != ""
}

// Executor represents the core interface for running code to completion.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// Outcome is what a Session reports for one evaluated cell.
type Outcome struct {
	Success bool
	// Err is the evaluation error when Success is false. Its formatted
	// text has already been written to the run's output.
	Err error
}

// Session evaluates code against accumulated state. Everything the code
// writes to its standard streams during Run goes to out.
type Session interface {
	Run(code string, out io.Writer) Outcome
}

// ArtifactLocator finds the newest artifact written at or after since.
// Now reads the clock artifact mtimes are stamped with.
type ArtifactLocator interface {
	Now() time.Time
	Latest(since time.Time) (path string, found bool, err error)
}
