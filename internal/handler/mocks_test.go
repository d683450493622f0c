package handler_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/chat"
	"github.com/sakif/mapchat/internal/model"
	"github.com/sakif/mapchat/internal/service"
	"github.com/sakif/mapchat/internal/viewer"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func jsonBody(s string) io.Reader { return strings.NewReader(s) }

// MockRunService implements handler.RunService with canned data.
type MockRunService struct {
	Runs map[string]*model.Run

	SubmittedCode   string
	SubmittedSource model.RunSource
	SubmitErr       error

	ListLimit  int
	ListOffset int
	ListStatus model.RunStatus

	// WaitBlocks makes Wait block until its context is done.
	WaitBlocks bool
}

func newMockRunService(runs ...*model.Run) *MockRunService {
	m := &MockRunService{Runs: make(map[string]*model.Run)}
	for _, r := range runs {
		m.Runs[r.ID] = r
	}
	return m
}

func (m *MockRunService) Submit(_ context.Context, code string, source model.RunSource) (*model.Run, error) {
	m.SubmittedCode = code
	m.SubmittedSource = source
	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	if strings.TrimSpace(code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	run := &model.Run{ID: "run-new", Code: code, Source: source, Status: model.RunRunning, CreatedAt: time.Now()}
	m.Runs[run.ID] = run
	return run, nil
}

func (m *MockRunService) Rerun(ctx context.Context, id string) (*model.Run, error) {
	prev, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	run := &model.Run{ID: "run-rerun", Code: prev.Code, Source: model.SourceRerun, ParentID: prev.ID, Status: model.RunRunning}
	m.Runs[run.ID] = run
	return run, nil
}

func (m *MockRunService) Wait(ctx context.Context, id string) (*model.Run, error) {
	if m.WaitBlocks {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.Get(ctx, id)
}

func (m *MockRunService) Get(_ context.Context, id string) (*model.Run, error) {
	run, ok := m.Runs[id]
	if !ok {
		return nil, apperror.NotFound("run", id)
	}
	return run, nil
}

func (m *MockRunService) List(_ context.Context, limit, offset int, status model.RunStatus) ([]model.Run, error) {
	m.ListLimit, m.ListOffset, m.ListStatus = limit, offset, status
	if status == "bogus" {
		return nil, apperror.ValidationFailed("status", "unknown run status")
	}
	var out []model.Run
	for _, r := range m.Runs {
		out = append(out, *r)
	}
	return out, nil
}

func (m *MockRunService) Delete(_ context.Context, id string) error {
	run, ok := m.Runs[id]
	if !ok {
		return apperror.NotFound("run", id)
	}
	if run.Status == model.RunRunning {
		return apperror.Conflict("run", id, "still running")
	}
	delete(m.Runs, id)
	return nil
}

// MockAssistant implements handler.Assistant.
type MockAssistant struct {
	Turn    *service.Turn
	Err     error
	Asked   string
	history []chat.Message
	Resets  int
}

func (m *MockAssistant) Ask(_ context.Context, message string) (*service.Turn, error) {
	m.Asked = message
	if m.Err != nil {
		return nil, m.Err
	}
	m.history = append(m.history,
		chat.Message{Role: chat.RoleUser, Content: message},
		chat.Message{Role: chat.RoleAssistant, Content: m.Turn.Reply},
	)
	return m.Turn, nil
}

func (m *MockAssistant) History() []chat.Message { return m.history }

func (m *MockAssistant) Reset() {
	m.Resets++
	m.history = nil
}

// MockDisplay implements handler.Display.
type MockDisplay struct {
	state viewer.State
	body  string
}

func (m *MockDisplay) State() viewer.State { return m.state }

func (m *MockDisplay) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if m.body == "" {
		http.Error(w, "no artifact to display", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	io.WriteString(w, m.body)
}

// MockLogin implements handler.Login.
type MockLogin struct {
	Password string
}

func (m *MockLogin) Login(_ context.Context, password string) (string, error) {
	switch {
	case password == "":
		return "", apperror.ValidationFailed("password", "password is required")
	case password != m.Password:
		return "", apperror.Forbidden("invalid password")
	}
	return "signed.jwt.token", nil
}
