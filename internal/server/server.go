// Package server sets up the HTTP router and runs the HTTP server.
//
// This is the wiring layer for HTTP: it decides which URL maps to which
// handler and which middleware runs where. Components come from app.App;
// the server never constructs services itself.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/mapchat/internal/app"
	"github.com/sakif/mapchat/internal/auth"
	"github.com/sakif/mapchat/internal/handler"
	"github.com/sakif/mapchat/internal/middleware"
)

// ShutdownTimeout is how long in-flight requests get to finish.
const ShutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port int
	// MCP, when set, is mounted at /mcp behind the same auth as /api.
	MCP http.Handler
}

// Server is the HTTP server and its router.
type Server struct {
	router *chi.Mux
	config Config
	app    *app.App
	logger *slog.Logger
}

// New creates a Server for a.
func New(cfg Config, a *app.App, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		app:    a,
		logger: logger,
	}
	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET    /                      → chat page
//	GET    /view                  → displayed artifact
//	POST   /api/token             → password → token   (auth enabled only)
//	POST   /api/logout            → clear token cookie (auth enabled only)
//	POST   /api/execute           → submit code
//	GET    /api/runs              → run history
//	GET    /api/runs/{id}         → one run
//	GET    /api/runs/{id}/wait    → block until the run finishes
//	POST   /api/runs/{id}/rerun   → execute a run's code again
//	DELETE /api/runs/{id}         → delete a finished run
//	GET    /api/chat              → conversation
//	POST   /api/chat              → send a message
//	DELETE /api/chat              → clear the conversation
//	GET    /api/view              → viewer state
//	*      /mcp                   → MCP streamable HTTP (when configured)
//
// MIDDLEWARE ORDER:
//  1. RequestID, so the logger can tag every line
//  2. RealIP
//  3. Logger
//  4. Recoverer, innermost, so a panicking handler is still logged as 500
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	runs := handler.NewRunHandler(s.app.Runs, s.logger)
	chat := handler.NewChatHandler(s.app.Assistant, s.logger)
	view := handler.NewViewHandler(s.app.Viewer, s.logger)
	page, err := handler.NewPageHandler(s.app.Assistant, s.app.Viewer, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	// requireAuth is a no-op when no JWT secret is configured.
	requireAuth := func(next http.Handler) http.Handler { return next }
	if s.app.Tokens != nil {
		requireAuth = auth.RequireAuth(s.app.Tokens)
		tokens := handler.NewTokenHandler(s.app.Auth, s.app.Config.Auth.TokenTTL(), s.logger)
		s.router.Post("/api/token", tokens.HandleToken)
		s.router.Post("/api/logout", tokens.HandleLogout)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/", page.HandleIndex)
		r.Get("/view", view.HandleView)

		r.Route("/api", func(r chi.Router) {
			r.Post("/execute", runs.HandleExecute)
			r.Get("/runs", runs.HandleList)
			r.Get("/runs/{id}", runs.HandleGet)
			r.Get("/runs/{id}/wait", runs.HandleWait)
			r.Post("/runs/{id}/rerun", runs.HandleRerun)
			r.Delete("/runs/{id}", runs.HandleDelete)

			r.Get("/chat", chat.HandleHistory)
			r.Post("/chat", chat.HandleSend)
			r.Delete("/chat", chat.HandleReset)

			r.Get("/view", view.HandleState)
		})

		if s.config.MCP != nil {
			r.Handle("/mcp", s.config.MCP)
			r.Handle("/mcp/*", s.config.MCP)
		}
	})

	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// Two goroutines in one errgroup: the listener, and a watcher that calls
// Shutdown when ctx ends. Whichever fails first cancels the other.
func (s *Server) Run(ctx context.Context) error {
	// No WriteTimeout: /api/runs/{id}/wait and /mcp hold responses open.
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.Bool("auth", s.app.Tokens != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}
