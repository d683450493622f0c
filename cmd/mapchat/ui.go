package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/mapchat/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	outputStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// statusLabel renders a run status the way the chat page words it.
func statusLabel(s model.RunStatus) string {
	switch s {
	case model.RunSucceeded:
		return successStyle.Render("Visualization complete")
	case model.RunFailed:
		return failureStyle.Render("Execution failed")
	case model.RunPreempted:
		return mutedStyle.Render("Stopped by a newer submission")
	default:
		return mutedStyle.Render(string(s))
	}
}

// printRun writes a finished run: status, artifact and output.
func printRun(w io.Writer, run *model.Run) {
	fmt.Fprintf(w, "%s %s\n", titleStyle.Render("Run "+run.ID), statusLabel(run.Status))
	if run.ArtifactPath != "" {
		fmt.Fprintf(w, "%s %s\n", mutedStyle.Render("artifact:"), run.ArtifactPath)
	}
	if out := strings.TrimRight(run.Output, "\n"); out != "" {
		fmt.Fprintln(w, outputStyle.Render(out))
	}
}

// renderMarkdown renders a model reply for the terminal, falling back to
// the raw text.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return out
}
