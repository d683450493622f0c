package objectstore

import (
	"context"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/sakif/mapchat/internal/executor"
)

// DefaultQueueSize is how many uploads may wait before new ones are dropped.
const DefaultQueueSize = 16

const uploadTimeout = 30 * time.Second

// Store is where the Mirror uploads to. *MinioStore implements it.
type Store interface {
	Put(ctx context.Context, key, path, contentType string) error
}

// Mirror uploads the artifact of every successful run.
//
// Upload is an executor.Listener and runs on the execution goroutine, so it
// only enqueues; a single background goroutine does the uploads. When the
// queue is full the artifact is skipped rather than holding up the next
// submission.
type Mirror struct {
	store  Store
	prefix string
	logger *slog.Logger

	queue chan upload
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

type upload struct {
	key  string
	path string
}

// NewMirror starts the upload goroutine. Call Close to stop it.
func NewMirror(store Store, prefix string, logger *slog.Logger) *Mirror {
	m := &Mirror{
		store:  store,
		prefix: prefix,
		logger: logger,
		queue:  make(chan upload, DefaultQueueSize),
		done:   make(chan struct{}),
	}
	go m.run()
	return m
}

// ObjectKey is the key an artifact is stored under:
// <prefix>/<run id>/<file name>.
func ObjectKey(prefix, runID, artifactPath string) string {
	return path.Join(prefix, runID, filepath.Base(artifactPath))
}

// Upload queues the artifact of res. Failed runs and runs without an
// artifact are ignored.
func (m *Mirror) Upload(res executor.ExecutionResult) {
	if !res.Success || !res.HasArtifact() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	u := upload{key: ObjectKey(m.prefix, res.RunID, res.ArtifactPath), path: res.ArtifactPath}
	select {
	case m.queue <- u:
	default:
		m.logger.Warn("mirror queue full, skipping artifact",
			slog.String("run_id", res.RunID),
			slog.String("path", res.ArtifactPath),
		)
	}
}

// Close stops accepting artifacts, finishes the queued uploads and waits
// for the upload goroutine.
func (m *Mirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()

	<-m.done
}

func (m *Mirror) run() {
	defer close(m.done)
	for u := range m.queue {
		m.put(u)
	}
}

func (m *Mirror) put(u upload) {
	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	contentType := mime.TypeByExtension(filepath.Ext(u.path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := m.store.Put(ctx, u.key, u.path, contentType); err != nil {
		m.logger.Error("failed to mirror artifact",
			slog.String("key", u.key),
			slog.String("error", err.Error()),
		)
		return
	}
	m.logger.Info("artifact mirrored", slog.String("key", u.key))
}
