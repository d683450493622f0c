package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	mapmcp "github.com/sakif/mapchat/internal/mcp"
	"github.com/sakif/mapchat/internal/server"
)

var serveMCP bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Run the chat page and REST API.

With --mcp the MCP tools are also served over streamable HTTP at /mcp,
sharing the interpreter session with the chat.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP tools at /mcp")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, logger, err := openApp(ctx, "info")
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.WatchPrompts(ctx); err != nil {
		// Prompts still load; they just won't hot-reload.
		logger.Warn("prompt reload disabled", slog.String("error", err.Error()))
	}
	if a.Tokens == nil {
		logger.Warn("JWT_SECRET not set, authentication is disabled")
	}

	cfg := server.Config{Port: a.Config.Port()}
	if serveMCP {
		ms := mapmcp.NewServer(a.Runs, a.Viewer)
		cfg.MCP = mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return ms }, nil)
	}

	srv, err := server.New(cfg, a, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

