package objectstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sakif/mapchat/internal/executor"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type putCall struct {
	key, path, contentType string
}

// fakeStore records uploads. When gate is set, every Put blocks on it.
type fakeStore struct {
	mu    sync.Mutex
	calls []putCall
	err   error
	gate  chan struct{}
}

func (f *fakeStore) Put(_ context.Context, key, path, contentType string) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, putCall{key, path, contentType})
	return f.err
}

func (f *fakeStore) Calls() []putCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]putCall(nil), f.calls...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, runID, path, want string
	}{
		{"", "run1", "map_output/temp_map_1.html", "run1/temp_map_1.html"},
		{"maps", "run1", "map_output/temp_map_1.html", "maps/run1/temp_map_1.html"},
		{"maps/", "run2", "/abs/dir/out.html", "maps/run2/out.html"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ObjectKey(tt.prefix, tt.runID, tt.path))
	}
}

func TestMirror_UploadsSuccessfulArtifacts(t *testing.T) {
	store := &fakeStore{}
	m := NewMirror(store, "maps", newTestLogger())

	m.Upload(executor.ExecutionResult{RunID: "ok", Success: true, ArtifactPath: "map_output/temp_map_a.html"})
	m.Upload(executor.ExecutionResult{RunID: "failed", Success: false, ArtifactPath: "map_output/temp_map_b.html"})
	m.Upload(executor.ExecutionResult{RunID: "none", Success: true})
	m.Close()

	calls := store.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "maps/ok/temp_map_a.html", calls[0].key)
	assert.Equal(t, "map_output/temp_map_a.html", calls[0].path)
	assert.Contains(t, calls[0].contentType, "text/html")
}

func TestMirror_StoreErrorsAreLogged(t *testing.T) {
	store := &fakeStore{err: errors.New("access denied")}
	m := NewMirror(store, "", newTestLogger())

	m.Upload(executor.ExecutionResult{RunID: "a", Success: true, ArtifactPath: "a.html"})
	m.Upload(executor.ExecutionResult{RunID: "b", Success: true, ArtifactPath: "b.html"})
	m.Close()

	assert.Len(t, store.Calls(), 2, "a failed upload does not stop later ones")
}

func TestMirror_DropsWhenQueueFull(t *testing.T) {
	store := &fakeStore{gate: make(chan struct{})}
	m := NewMirror(store, "", newTestLogger())

	// One upload is held in Put, DefaultQueueSize wait in the queue, the
	// rest are dropped without blocking.
	total := DefaultQueueSize + 5
	for i := 0; i < total; i++ {
		m.Upload(executor.ExecutionResult{RunID: "r", Success: true, ArtifactPath: "x.html"})
	}

	close(store.gate)
	m.Close()

	calls := len(store.Calls())
	assert.LessOrEqual(t, calls, DefaultQueueSize+1)
	assert.GreaterOrEqual(t, calls, DefaultQueueSize)
}

func TestMirror_UploadAfterClose(t *testing.T) {
	store := &fakeStore{}
	m := NewMirror(store, "", newTestLogger())
	m.Close()
	m.Close()

	m.Upload(executor.ExecutionResult{RunID: "late", Success: true, ArtifactPath: "x.html"})
	assert.Empty(t, store.Calls())
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, Config{Bucket: "b"}.Validate())
	assert.Error(t, Config{Endpoint: "localhost:9000"}.Validate())
	assert.NoError(t, Config{Endpoint: "localhost:9000", Bucket: "b"}.Validate())
}

func TestNewMinioStore(t *testing.T) {
	_, err := NewMinioStore(Config{})
	assert.Error(t, err)

	s, err := NewMinioStore(Config{Endpoint: "localhost:9000", Bucket: "maps", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "maps", s.bucket)
}
