// Package app assembles mapchat's components from a Config.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB ───────────────────────────────┐
//	interp.Session → Worker → Coordinator → RunService → AssistantService
//	                              │                          ↑
//	                              ├→ Viewer.Show             chat.Manager → genai
//	                              └→ Mirror.Upload (optional)
//
// Every entry point (HTTP server, MCP server, CLI commands) builds one App
// and talks to its services, so all of them share one interpreter session
// and one run history.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/sakif/mapchat/internal/auth"
	"github.com/sakif/mapchat/internal/chat"
	"github.com/sakif/mapchat/internal/config"
	"github.com/sakif/mapchat/internal/executor"
	"github.com/sakif/mapchat/internal/executor/artifact"
	"github.com/sakif/mapchat/internal/executor/interp"
	"github.com/sakif/mapchat/internal/objectstore"
	sqliteRepo "github.com/sakif/mapchat/internal/repository/sqlite"
	"github.com/sakif/mapchat/internal/service"
	"github.com/sakif/mapchat/internal/viewer"
)

// ErrNoAPIKey is returned by the chat client when no model key is
// configured.
var ErrNoAPIKey = errors.New("app: GEMINI_API_KEY is not set")

// App owns every long-lived component. Close releases them.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	DB          *sqliteRepo.DB
	Coordinator *executor.Coordinator
	Viewer      *viewer.Viewer
	Prompts     *config.PromptStore

	Runs      *service.RunService
	Assistant *service.AssistantService
	// Auth and Tokens are nil when auth is disabled.
	Auth   *service.AuthService
	Tokens *auth.TokenService

	mirror      *objectstore.Mirror
	watcher     *config.PromptWatcher
	unsubscribe []func()
}

// Option customises New.
type Option func(*options)

type options struct {
	session executor.Session
	client  chat.Client
}

// WithSession replaces the process-wide interpreter session.
func WithSession(s executor.Session) Option {
	return func(o *options) { o.session = s }
}

// WithChatClient replaces the Gemini client.
func WithChatClient(c chat.Client) Option {
	return func(o *options) { o.client = c }
}

// New builds an App from cfg.
//
// WIRING ORDER:
//  1. database (+ recovery of runs a previous process left running)
//  2. execution: session → locator → worker → coordinator
//  3. listeners: viewer, then the optional mirror
//  4. services: runs, chat + assistant, auth
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	// === DATABASE ===
	dbPath := cfg.DBPath()
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("app: creating database directory: %w", err)
		}
	}
	if a.DB, err = sqliteRepo.New(dbPath); err != nil {
		return nil, fmt.Errorf("app: opening database: %w", err)
	}

	// === EXECUTION ===
	artifacts := cfg.Execution.Artifacts()
	locator, err := artifact.New(artifacts)
	if err != nil {
		return nil, err
	}
	if err := locator.EnsureDir(); err != nil {
		return nil, err
	}

	session := o.session
	if session == nil {
		icfg := interp.DefaultConfig()
		icfg.Artifacts = artifacts
		if len(cfg.Execution.PreImports) > 0 {
			icfg.PreImports = append(slices.Clone(cfg.Execution.PreImports), interp.HostImportPath)
		}
		if session, err = interp.Shared(icfg, logger.With(slog.String("component", "interp"))); err != nil {
			return nil, fmt.Errorf("app: starting interpreter: %w", err)
		}
	}

	worker := executor.NewWorker(session, locator, logger.With(slog.String("component", "worker")))
	a.Coordinator = executor.NewCoordinator(worker, logger.With(slog.String("component", "coordinator")))

	// === LISTENERS ===
	a.Viewer = viewer.New(logger.With(slog.String("component", "viewer")))
	a.unsubscribe = append(a.unsubscribe, a.Coordinator.Subscribe(a.Viewer.Show))

	if cfg.Mirror.Enabled() {
		if err := a.startMirror(ctx); err != nil {
			return nil, err
		}
	}

	// === SERVICES ===
	a.Runs = service.NewRunService(a.Coordinator, a.DB, logger, cfg.Execution.MaxCodeLength())
	if n, err := a.Runs.RecoverInterrupted(ctx); err != nil {
		return nil, err
	} else if n > 0 {
		logger.Info("recovered interrupted runs", slog.Int("count", n))
	}

	if a.Prompts, err = config.NewPromptStore(cfg.Prompts()); err != nil {
		return nil, fmt.Errorf("app: loading prompts: %w", err)
	}

	client := o.client
	if client == nil {
		if client, err = newChatClient(ctx, cfg.Model); err != nil {
			return nil, err
		}
	}
	conv := chat.NewManager(client, logger.With(slog.String("component", "chat")))
	a.Assistant = service.NewAssistantService(conv, a.Prompts, a.Runs, logger)

	if cfg.Auth.Enabled() {
		if a.Tokens, err = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL()); err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.Auth = service.NewAuthService(a.Tokens, auth.NewPasswordService(), cfg.Auth.PasswordHash, logger)
	}

	return a, nil
}

func (a *App) startMirror(ctx context.Context) error {
	m := a.Config.Mirror
	store, err := objectstore.NewMinioStore(objectstore.Config{
		Endpoint:  m.Endpoint,
		Bucket:    m.Bucket,
		Region:    m.Region,
		AccessKey: m.AccessKey,
		SecretKey: m.SecretKey,
		Secure:    m.Secure,
		Prefix:    m.Prefix,
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("app: %w", err)
	}

	a.mirror = objectstore.NewMirror(store, m.Prefix, a.Logger.With(slog.String("component", "mirror")))
	a.unsubscribe = append(a.unsubscribe, a.Coordinator.Subscribe(a.mirror.Upload))
	a.Logger.Info("mirroring artifacts",
		slog.String("endpoint", m.Endpoint),
		slog.String("bucket", m.Bucket),
	)
	return nil
}

// WatchPrompts reloads the prompts file whenever it changes, until Close.
func (a *App) WatchPrompts(ctx context.Context) error {
	w, err := config.NewPromptWatcher(a.Prompts, a.Logger.With(slog.String("component", "prompts")))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	a.watcher = w
	return nil
}

// Close stops execution, waits for in-flight runs to be recorded and
// releases everything else. It is safe on a partially built App.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.Coordinator != nil {
		a.Coordinator.Close()
	}
	if a.Runs != nil {
		a.Runs.Close()
	}
	for _, unsubscribe := range a.unsubscribe {
		unsubscribe()
	}
	if a.mirror != nil {
		a.mirror.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

func newChatClient(ctx context.Context, m config.ModelConfig) (chat.Client, error) {
	if m.APIKey == "" {
		return missingKeyClient{}, nil
	}
	c, err := chat.NewGenAIClient(ctx, m.APIKey, m.Name(), m.MaxOutputTokens())
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	return c, nil
}

// missingKeyClient lets every surface except chat work without a model key.
type missingKeyClient struct{}

func (missingKeyClient) Complete(context.Context, string, []chat.Message) (string, error) {
	return "", ErrNoAPIKey
}
