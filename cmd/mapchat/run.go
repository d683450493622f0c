package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/mapchat/internal/model"
)

// runTimeoutDefault bounds how long run and ask wait for the execution.
const runTimeoutDefault = 2 * time.Minute

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run <file|->",
	Short: "Execute a Go snippet and print the result",
	Long: `Execute a Go snippet in the interpreter session and print its output.

Pass "-" to read the snippet from stdin. The run is recorded in the history
like any other. The exit status is non-zero when the run does not succeed.`,
	Example: `  mapchat run lisbon.go
  echo 'host.WriteArtifact("x", "<html></html>")' | mapchat run -`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", runTimeoutDefault, "how long to wait for the run")
}

var errRunFailed = errors.New("run did not succeed")

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readSource(cmd.InOrStdin(), args[0])
	if err != nil {
		return err
	}

	a, _, err := openApp(cmd.Context(), "warn")
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.Runs.Submit(cmd.Context(), code, model.SourceCLI)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	done, err := a.Runs.Wait(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("waiting for run %s: %w", run.ID, err)
	}

	printRun(cmd.OutOrStdout(), done)
	if done.Status != model.RunSucceeded {
		return errRunFailed
	}
	return nil
}

func readSource(stdin io.Reader, arg string) (string, error) {
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(b), nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
