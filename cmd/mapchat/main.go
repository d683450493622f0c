// Command mapchat runs the map chat: a language model writes Go code, a
// persistent interpreter session runs it, and the HTML map it writes is
// served for viewing.
//
// COMMANDS:
//
//	mapchat serve           HTTP server: chat page, REST API, optional /mcp
//	mapchat run <file|->    execute one snippet and print the result
//	mapchat ask <message>   one chat turn from the terminal
//	mapchat mcp [--http]    MCP server on stdio or streamable HTTP
//	mapchat hash-password   bcrypt hash for auth.password_hash
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/mapchat/internal/app"
	"github.com/sakif/mapchat/internal/config"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "mapchat",
	Short: "Chat with a model that draws maps in Go",
	Long: `mapchat turns chat messages into maps.

The model answers with Go code; mapchat runs it in a persistent interpreter
session and displays the newest HTML artifact the code writes.

Configuration comes from an optional YAML file (--config) overridden by
environment variables such as PORT, DB_PATH, GEMINI_API_KEY and JWT_SECRET.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(serveCmd, runCmd, askCmd, mcpCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger builds the process logger.
//
// Logs go to stderr: stdout carries command output, and for `mcp` on stdio
// it carries the protocol itself.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// openApp loads configuration and builds the App. quietLevel is used when
// neither the flag nor the config sets a level, so one-shot commands do not
// drown their output in startup logs.
func openApp(ctx context.Context, quietLevel string) (*app.App, *slog.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if level == "" {
		level = quietLevel
	}
	logger := newLogger(level)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
