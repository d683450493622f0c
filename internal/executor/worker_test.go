package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// sessionFunc adapts a function to the Session interface.
type sessionFunc func(code string, out io.Writer) Outcome

func (f sessionFunc) Run(code string, out io.Writer) Outcome { return f(code, out) }

// locatorFunc adapts a function to the ArtifactLocator interface.
type locatorFunc func(since time.Time) (string, bool, error)

func (f locatorFunc) Latest(since time.Time) (string, bool, error) { return f(since) }

func (f locatorFunc) Now() time.Time { return time.Now() }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWorker_Execute(t *testing.T) {
	logger := newTestLogger()

	t.Run("successful evaluation with artifact", func(t *testing.T) {
		var gotSince time.Time
		session := sessionFunc(func(code string, out io.Writer) Outcome {
			fmt.Fprintln(out, "rendering map")
			return Outcome{Success: true}
		})
		locator := locatorFunc(func(since time.Time) (string, bool, error) {
			gotSince = since
			return "map_output/temp_map_20240101.html", true, nil
		})

		w := NewWorker(session, locator, logger)
		res, err := w.Execute(context.Background(), ExecutionRequest{ID: "run-1", Code: "render()"})
		require.NoError(t, err)

		assert.True(t, res.Success)
		assert.Equal(t, "run-1", res.RunID)
		assert.Equal(t, "map_output/temp_map_20240101.html", res.ArtifactPath)
		assert.Contains(t, res.Output, "rendering map")
		assert.Equal(t, res.StartedAt, gotSince, "locator must receive the run's start time")
	})

	t.Run("evaluation error skips artifact lookup", func(t *testing.T) {
		session := sessionFunc(func(code string, out io.Writer) Outcome {
			fmt.Fprintln(out, "panic: runtime error: integer divide by zero")
			return Outcome{Err: errors.New("integer divide by zero")}
		})
		locator := locatorFunc(func(time.Time) (string, bool, error) {
			t.Error("locator must not be called after a failed evaluation")
			return "", false, nil
		})

		w := NewWorker(session, locator, logger)
		res, err := w.Execute(context.Background(), ExecutionRequest{Code: "1/0"})
		require.NoError(t, err)

		assert.False(t, res.Success)
		assert.False(t, res.HasArtifact())
		assert.Contains(t, res.Output, "divide by zero")
	})

	t.Run("no qualifying artifact", func(t *testing.T) {
		session := sessionFunc(func(string, io.Writer) Outcome { return Outcome{Success: true} })
		locator := locatorFunc(func(time.Time) (string, bool, error) { return "", false, nil })

		res, err := NewWorker(session, locator, logger).Execute(context.Background(), ExecutionRequest{Code: "x := 1"})
		require.NoError(t, err)

		assert.False(t, res.Success)
		assert.Empty(t, res.ArtifactPath)
	})

	t.Run("artifact lookup error is treated as no artifact", func(t *testing.T) {
		session := sessionFunc(func(string, io.Writer) Outcome { return Outcome{Success: true} })
		locator := locatorFunc(func(time.Time) (string, bool, error) {
			return "", false, errors.New("open map_output: permission denied")
		})

		res, err := NewWorker(session, locator, logger).Execute(context.Background(), ExecutionRequest{Code: "x := 1"})
		require.NoError(t, err)

		assert.False(t, res.Success)
		assert.Empty(t, res.ArtifactPath)
	})

	t.Run("orchestration panic is recovered into the output", func(t *testing.T) {
		session := sessionFunc(func(code string, out io.Writer) Outcome {
			fmt.Fprint(out, "partial output\n")
			panic("session exploded")
		})
		locator := locatorFunc(func(time.Time) (string, bool, error) { return "x", true, nil })

		res, err := NewWorker(session, locator, logger).Execute(context.Background(), ExecutionRequest{Code: "boom"})
		require.NoError(t, err)

		assert.False(t, res.Success)
		assert.Empty(t, res.ArtifactPath)
		assert.Contains(t, res.Output, "partial output")
		assert.Contains(t, res.Output, "Error: session exploded")
		assert.Contains(t, res.Output, "goroutine", "stack trace should be appended")
	})

	t.Run("duration is measured", func(t *testing.T) {
		session := sessionFunc(func(string, io.Writer) Outcome {
			time.Sleep(5 * time.Millisecond)
			return Outcome{Success: true}
		})
		locator := locatorFunc(func(time.Time) (string, bool, error) { return "", false, nil })

		res, _ := NewWorker(session, locator, logger).Execute(context.Background(), ExecutionRequest{Code: "sleep"})
		assert.GreaterOrEqual(t, res.Duration, 5*time.Millisecond)
	})
}
