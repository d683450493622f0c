package viewer

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mapchat/internal/executor"
)

func newTestViewer() *Viewer {
	v := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	v.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return v
}

func writeArtifact(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestViewer_Show(t *testing.T) {
	first := writeArtifact(t, "temp_map_1.html", "<p>first</p>")

	tests := []struct {
		name       string
		result     executor.ExecutionResult
		wantStatus string
		wantPath   string
	}{
		{
			name:       "failed run keeps previous artifact",
			result:     executor.ExecutionResult{RunID: "r2", Output: "boom"},
			wantStatus: StatusFailed,
			wantPath:   first,
		},
		{
			name:       "success without artifact keeps previous artifact",
			result:     executor.ExecutionResult{RunID: "r2", Success: true},
			wantStatus: StatusFailed,
			wantPath:   first,
		},
		{
			name:       "missing file keeps previous artifact",
			result:     executor.ExecutionResult{RunID: "r2", Success: true, ArtifactPath: filepath.Join(t.TempDir(), "gone.html")},
			wantStatus: StatusFailed,
			wantPath:   first,
		},
		{
			name:       "artifact path on failed run is ignored",
			result:     executor.ExecutionResult{RunID: "r2", ArtifactPath: first},
			wantStatus: StatusFailed,
			wantPath:   first,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViewer()
			v.Show(executor.ExecutionResult{RunID: "r1", Success: true, ArtifactPath: first})

			v.Show(tt.result)

			st := v.State()
			assert.Equal(t, tt.wantStatus, st.Status)
			assert.Equal(t, "r2", st.LastRunID)
			require.NotNil(t, st.Artifact)
			assert.Equal(t, tt.wantPath, st.Artifact.Path)
			assert.Equal(t, "r1", st.Artifact.RunID)
		})
	}
}

func TestViewer_ShowReplacesArtifact(t *testing.T) {
	v := newTestViewer()
	second := writeArtifact(t, "temp_map_2.html", "<p>second</p>")

	v.Show(executor.ExecutionResult{RunID: "r1", Success: true, ArtifactPath: writeArtifact(t, "temp_map_1.html", "x")})
	v.Show(executor.ExecutionResult{RunID: "r2", Success: true, ArtifactPath: second})

	got, ok := v.Current()
	require.True(t, ok)
	want := Artifact{RunID: "r2", Path: second, UpdatedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Current() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StatusComplete, v.State().Status)
}

func TestViewer_InitialState(t *testing.T) {
	v := newTestViewer()

	_, ok := v.Current()
	assert.False(t, ok)
	assert.Equal(t, State{Status: StatusReady}, v.State())
}

func TestViewer_ServeHTTP(t *testing.T) {
	v := newTestViewer()

	rec := httptest.NewRecorder()
	v.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	path := writeArtifact(t, "temp_map_1.html", "<html>map</html>")
	v.Show(executor.ExecutionResult{RunID: "r1", Success: true, ArtifactPath: path})

	rec = httptest.NewRecorder()
	v.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/view", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>map</html>", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}
