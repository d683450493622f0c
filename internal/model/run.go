// Package model defines the data structures shared across layers.
package model

import "time"

// RunStatus is the persisted lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	// RunPreempted marks a run stopped by a newer submission. Its output was
	// discarded.
	RunPreempted RunStatus = "preempted"
)

// Terminal reports whether the status can no longer change.
func (s RunStatus) Terminal() bool {
	return s == RunSucceeded || s == RunFailed || s == RunPreempted
}

// RunSource records which surface submitted a run.
type RunSource string

const (
	SourceAPI   RunSource = "api"
	SourceChat  RunSource = "chat"
	SourceMCP   RunSource = "mcp"
	SourceCLI   RunSource = "cli"
	SourceRerun RunSource = "rerun"
)

// Run is one submission of code to the interpreter session.
type Run struct {
	ID     string    `json:"id"`
	Code   string    `json:"code"`
	Source RunSource `json:"source"`
	// ParentID is the run a rerun was copied from.
	ParentID     string     `json:"parentId,omitempty"`
	Status       RunStatus  `json:"status"`
	Output       string     `json:"output"`
	ArtifactPath string     `json:"artifactPath,omitempty"`
	DurationMS   int64      `json:"durationMs"`
	CreatedAt    time.Time  `json:"createdAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}
