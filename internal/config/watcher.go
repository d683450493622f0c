package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce collapses the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// PromptWatcher reloads a PromptStore whenever its file changes.
//
// It watches the parent directory rather than the file itself: editors
// often save by writing a temp file and renaming it over the original,
// which would silently drop a watch on the old inode.
type PromptWatcher struct {
	store    *PromptStore
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
	dir      string
	name     string

	mu      sync.Mutex
	running bool
	pending time.Time
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPromptWatcher creates a watcher for store's file.
func NewPromptWatcher(store *PromptStore, logger *slog.Logger) (*PromptWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating watcher: %w", err)
	}
	path, err := filepath.Abs(store.Path())
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("config: resolving %s: %w", store.Path(), err)
	}

	return &PromptWatcher{
		store:    store,
		logger:   logger,
		watcher:  w,
		debounce: DefaultDebounce,
		dir:      filepath.Dir(path),
		name:     filepath.Base(path),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking and may be called once.
func (pw *PromptWatcher) Start(ctx context.Context) error {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return nil
	}
	pw.running = true
	pw.mu.Unlock()

	if err := os.MkdirAll(pw.dir, 0755); err != nil {
		pw.logger.Warn("failed to create prompts directory", slog.String("dir", pw.dir), slog.String("error", err.Error()))
	}
	if err := pw.watcher.Add(pw.dir); err != nil {
		pw.mu.Lock()
		pw.running = false
		pw.mu.Unlock()
		return fmt.Errorf("config: watching %s: %w", pw.dir, err)
	}
	pw.logger.Info("watching prompts file", slog.String("path", filepath.Join(pw.dir, pw.name)))

	go pw.run(ctx)
	return nil
}

// Stop ends the watch loop, waits for it and releases the watcher.
func (pw *PromptWatcher) Stop() {
	pw.mu.Lock()
	running := pw.running
	pw.running = false
	pw.mu.Unlock()

	if running {
		close(pw.stopCh)
		<-pw.doneCh
	}
	if err := pw.watcher.Close(); err != nil {
		pw.logger.Error("error closing prompts watcher", slog.String("error", err.Error()))
	}
}

func (pw *PromptWatcher) run(ctx context.Context) {
	defer close(pw.doneCh)

	ticker := time.NewTicker(pw.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pw.stopCh:
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != pw.name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			pw.mu.Lock()
			pw.pending = time.Now()
			pw.mu.Unlock()

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			pw.logger.Error("prompts watcher error", slog.String("error", err.Error()))

		case <-ticker.C:
			pw.flush()
		}
	}
}

// flush reloads once the file has been quiet for the debounce interval.
func (pw *PromptWatcher) flush() {
	pw.mu.Lock()
	if pw.pending.IsZero() || time.Since(pw.pending) < pw.debounce {
		pw.mu.Unlock()
		return
	}
	pw.pending = time.Time{}
	pw.mu.Unlock()

	if err := pw.store.Reload(); err != nil {
		pw.logger.Warn("keeping previous prompts", slog.String("error", err.Error()))
		return
	}
	pw.logger.Info("prompts reloaded", slog.String("path", pw.store.Path()))
}
