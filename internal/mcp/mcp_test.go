package mcp

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sakif/mapchat/internal/app"
	"github.com/sakif/mapchat/internal/config"
	"github.com/sakif/mapchat/internal/executor/interp"
)

func setup(t *testing.T) (*mcp.ClientSession, *app.App) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	cfg := &config.Config{RawDBPath: ":memory:", PromptsPath: filepath.Join(dir, "prompts.yaml")}
	cfg.Execution.OutputDir = filepath.Join(dir, "map_output")

	icfg := interp.DefaultConfig()
	icfg.Artifacts = cfg.Execution.Artifacts()
	session, err := interp.New(icfg, logger)
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	a, err := app.New(ctx, cfg, logger, app.WithSession(session))
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}

	server := NewServer(a.Runs, a.Viewer)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
		_ = a.Close()
	})
	return cs, a
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func TestListTools(t *testing.T) {
	cs, _ := setup(t)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"execute_code", "current_artifact", "recent_runs"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
}

func TestExecuteCode_WritesArtifact(t *testing.T) {
	cs, a := setup(t)

	res := callTool(t, cs, "execute_code", map[string]any{
		"code": `path, err := host.WriteArtifact("mcp", "<html>map</html>")
if err != nil {
	panic(err)
}
fmt.Println(path)`,
	})
	text := resultText(res)
	if res.IsError {
		t.Fatalf("unexpected error: %s", text)
	}
	if !strings.Contains(text, ": succeeded") {
		t.Errorf("expected succeeded status, got:\n%s", text)
	}
	if !strings.Contains(text, "temp_map_mcp.html") {
		t.Errorf("expected artifact path, got:\n%s", text)
	}

	shown, ok := a.Viewer.Current()
	if !ok || filepath.Base(shown.Path) != "temp_map_mcp.html" {
		t.Errorf("viewer shows %+v, want temp_map_mcp.html", shown)
	}

	res = callTool(t, cs, "current_artifact", nil)
	text = resultText(res)
	if !strings.Contains(text, "Visualization complete") || !strings.Contains(text, "temp_map_mcp.html") {
		t.Errorf("unexpected current_artifact output:\n%s", text)
	}
}

func TestExecuteCode_StatePersists(t *testing.T) {
	cs, _ := setup(t)

	callTool(t, cs, "execute_code", map[string]any{"code": "total := 40"})
	res := callTool(t, cs, "execute_code", map[string]any{"code": "total += 2; fmt.Println(total)"})

	// No artifact, so the run is reported as failed, but the output shows
	// the binding survived.
	text := resultText(res)
	if !strings.Contains(text, "42") {
		t.Errorf("expected 42 in output, got:\n%s", text)
	}
}

func TestExecuteCode_WholeProgram(t *testing.T) {
	cs, _ := setup(t)

	program := `package main

import (
	"fmt"
	"strings"
)

func main() {
	fmt.Println(strings.ToUpper("faro"))
}
`
	text := resultText(callTool(t, cs, "execute_code", map[string]any{"code": program}))
	if !strings.Contains(text, "FARO") {
		t.Errorf("expected program output, got:\n%s", text)
	}

	// main must not run again on the next call.
	text = resultText(callTool(t, cs, "execute_code", map[string]any{"code": `fmt.Println("next")`}))
	if strings.Contains(text, "FARO") {
		t.Errorf("main ran again:\n%s", text)
	}
}

func TestExecuteCode_RuntimeError(t *testing.T) {
	cs, _ := setup(t)

	res := callTool(t, cs, "execute_code", map[string]any{"code": "zero := 0\nfmt.Println(1 / zero)"})
	if !res.IsError {
		t.Fatal("expected an error result")
	}
	text := resultText(res)
	if !strings.Contains(text, ": failed") || !strings.Contains(text, "divide by zero") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestExecuteCode_EmptyCode(t *testing.T) {
	cs, _ := setup(t)

	res := callTool(t, cs, "execute_code", map[string]any{"code": "   "})
	if !res.IsError || !strings.Contains(resultText(res), "code is required") {
		t.Errorf("expected code is required error, got: %s", resultText(res))
	}
}

func TestCurrentArtifact_NothingDisplayed(t *testing.T) {
	cs, _ := setup(t)

	res := callTool(t, cs, "current_artifact", nil)
	text := resultText(res)
	if !strings.Contains(text, "Status: Ready") || !strings.Contains(text, "No artifact is displayed") {
		t.Errorf("unexpected output:\n%s", text)
	}
}

func TestRecentRuns(t *testing.T) {
	cs, _ := setup(t)

	res := callTool(t, cs, "recent_runs", nil)
	if got := resultText(res); got != "No runs yet." {
		t.Errorf("got %q, want no runs", got)
	}

	callTool(t, cs, "execute_code", map[string]any{"code": "x := 1"})
	res = callTool(t, cs, "recent_runs", map[string]any{"limit": 5})
	text := resultText(res)
	if !strings.Contains(text, "mcp") || !strings.Contains(text, "failed") {
		t.Errorf("unexpected output:\n%s", text)
	}
}
