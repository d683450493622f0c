package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Ask the model for a map from the terminal",
	Long: `Send one message to the model, print its reply and run the code it
contains. Needs GEMINI_API_KEY.`,
	Example: `  mapchat ask "a map of the ten largest cities in Portugal"`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, _, err := openApp(cmd.Context(), "warn")
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, mutedStyle.Render("AI Agent is thinking..."))

	turn, err := a.Assistant.Ask(cmd.Context(), strings.Join(args, " "))
	if turn != nil {
		fmt.Fprint(out, renderMarkdown(turn.Reply))
	}
	if err != nil {
		fmt.Fprintln(out, failureStyle.Render("Error occurred"))
		return err
	}

	fmt.Fprintln(out, mutedStyle.Render(turn.Status))
	if turn.RunID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()
	run, err := a.Runs.Wait(ctx, turn.RunID)
	if err != nil {
		return fmt.Errorf("waiting for run %s: %w", turn.RunID, err)
	}
	printRun(out, run)
	return nil
}

func init() {
	askCmd.Flags().DurationVar(&runTimeout, "timeout", runTimeoutDefault, "how long to wait for the run")
}
