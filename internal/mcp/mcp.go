// Package mcp exposes the execution session as MCP tools, so an MCP client
// can run code in the same session the chat uses and read back the map.
package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/model"
	"github.com/sakif/mapchat/internal/viewer"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// DefaultWait bounds how long execute_code waits for a run.
const DefaultWait = 60 * time.Second

const instructions = `Tools for a persistent Go interpreter session that draws maps.

execute_code runs Go statements, declarations or a whole package main program
in a session that keeps its variables between calls. fmt, math, os,
path/filepath, strings, time and host are already imported. Write HTML output with
host.WriteArtifact(name, html); the newest artifact becomes the displayed map.
current_artifact reports which artifact is on display; recent_runs lists the
latest runs.`

// Runs is the part of service.RunService the tools use.
type Runs interface {
	Submit(ctx context.Context, code string, source model.RunSource) (*model.Run, error)
	Wait(ctx context.Context, id string) (*model.Run, error)
	Get(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, limit, offset int, status model.RunStatus) ([]model.Run, error)
}

// Display is the part of viewer.Viewer the tools use.
type Display interface {
	State() viewer.State
}

// handler holds shared dependencies for the tool handlers.
type handler struct {
	runs    Runs
	display Display
	wait    time.Duration
}

// NewServer creates an MCP server with the mapchat tools registered.
func NewServer(runs Runs, display Display) *mcp.Server {
	h := &handler{runs: runs, display: display, wait: DefaultWait}

	s := mcp.NewServer(&mcp.Implementation{Name: "mapchat", Version: Version}, &mcp.ServerOptions{
		Instructions: instructions,
	})

	mcp.AddTool(s, &mcp.Tool{
		Name: "execute_code",
		Description: `Execute Go code in the shared interpreter session and wait for the result.

Variables persist between calls. A newer submission from any client stops this one.`,
	}, h.executeHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "current_artifact",
		Description: "Report the status of the last run and the artifact currently on display.",
	}, h.currentArtifactHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "recent_runs",
		Description: "List recent runs, newest first, with their status and artifact.",
	}, h.recentRunsHandler)

	return s
}

type executeParams struct {
	Code           string `json:"code" jsonschema:"Go statements, declarations or a package main program"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"how long to wait for the result (default 60)"`
}

func (h *handler) executeHandler(ctx context.Context, _ *mcp.CallToolRequest, params executeParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Code) == "" {
		return errorResult("code is required")
	}

	run, err := h.runs.Submit(ctx, params.Code, model.SourceMCP)
	if err != nil {
		return errorResult("Submission rejected: " + apperror.PublicMessage(err))
	}

	wait := h.wait
	if params.TimeoutSeconds > 0 {
		wait = time.Duration(params.TimeoutSeconds) * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	done, err := h.runs.Wait(waitCtx, run.ID)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return textResult(fmt.Sprintf("Run %s is still running after %s. Check it later with recent_runs.", run.ID, wait))
		}
		return errorResult(fmt.Sprintf("Waiting for run %s: %v", run.ID, err))
	}

	text := formatRun(done)
	if done.Status != model.RunSucceeded {
		return errorResult(text)
	}
	return textResult(text)
}

type currentArtifactParams struct{}

func (h *handler) currentArtifactHandler(_ context.Context, _ *mcp.CallToolRequest, _ currentArtifactParams) (*mcp.CallToolResult, any, error) {
	st := h.display.State()

	var b strings.Builder
	fmt.Fprintf(&b, "Status: %s\n", st.Status)
	if st.LastRunID != "" {
		fmt.Fprintf(&b, "Last run: %s\n", st.LastRunID)
	}
	if st.Artifact == nil {
		b.WriteString("No artifact is displayed.\n")
		return textResult(b.String())
	}
	fmt.Fprintf(&b, "Artifact: %s\n", st.Artifact.Path)
	fmt.Fprintf(&b, "From run: %s\n", st.Artifact.RunID)
	fmt.Fprintf(&b, "Updated: %s\n", st.Artifact.UpdatedAt.Format(time.RFC3339))
	return textResult(b.String())
}

type recentRunsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs (default 10)"`
}

func (h *handler) recentRunsHandler(ctx context.Context, _ *mcp.CallToolRequest, params recentRunsParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}
	runs, err := h.runs.List(ctx, limit, 0, "")
	if err != nil {
		return errorResult("Listing runs: " + apperror.PublicMessage(err))
	}
	if len(runs) == 0 {
		return textResult("No runs yet.")
	}

	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  %-9s  %-6s  %s", r.ID, r.Status, r.Source, r.CreatedAt.Format(time.RFC3339))
		if r.ArtifactPath != "" {
			fmt.Fprintf(&b, "  %s", r.ArtifactPath)
		}
		b.WriteByte('\n')
	}
	return textResult(b.String())
}

func formatRun(r *model.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", r.ID, r.Status)
	if r.ArtifactPath != "" {
		fmt.Fprintf(&b, "Artifact: %s\n", r.ArtifactPath)
	}
	if r.Status == model.RunPreempted {
		b.WriteString("A newer submission stopped this run before it finished.\n")
	}
	if r.Output != "" {
		fmt.Fprintf(&b, "\nOutput:\n%s", r.Output)
	}
	return b.String()
}

func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
