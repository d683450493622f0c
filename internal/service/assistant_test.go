package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/chat"
	"github.com/sakif/mapchat/internal/config"
	"github.com/sakif/mapchat/internal/model"
)

// fakeModel is a chat.Client with a canned reply.
type fakeModel struct {
	reply     string
	err       error
	gotSystem string
}

func (f *fakeModel) Complete(_ context.Context, systemPrompt string, _ []chat.Message) (string, error) {
	f.gotSystem = systemPrompt
	return f.reply, f.err
}

type staticPrompts config.Prompts

func (p staticPrompts) Get() config.Prompts { return config.Prompts(p) }

// fakeRuns records submissions.
type fakeRuns struct {
	codes   []string
	sources []model.RunSource
	err     error
}

func (f *fakeRuns) Submit(_ context.Context, code string, source model.RunSource) (*model.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.codes = append(f.codes, code)
	f.sources = append(f.sources, source)
	return &model.Run{ID: "run-1", Code: code, Source: source, Status: model.RunRunning}, nil
}

var testPrompts = staticPrompts{
	SystemPrompt:  "You write Go maps.",
	ErrorMessages: config.ErrorMessages{APIError: "The model is unavailable."},
}

func newTestAssistant(m *fakeModel, runs *fakeRuns) (*AssistantService, *chat.Manager) {
	conv := chat.NewManager(m, newTestLogger())
	return NewAssistantService(conv, testPrompts, runs, newTestLogger()), conv
}

func TestAssistant_AskExecutesCode(t *testing.T) {
	m := &fakeModel{reply: "Here you go:\n```go\nhost.WriteArtifact(\"x\", html)\n```"}
	runs := &fakeRuns{}
	svc, conv := newTestAssistant(m, runs)

	turn, err := svc.Ask(context.Background(), "  show me Paris  ")
	require.NoError(t, err)

	assert.Equal(t, StatusExecuting, turn.Status)
	assert.Equal(t, "run-1", turn.RunID)
	assert.Equal(t, `host.WriteArtifact("x", html)`, turn.Code)
	assert.Equal(t, []string{`host.WriteArtifact("x", html)`}, runs.codes)
	assert.Equal(t, []model.RunSource{model.SourceChat}, runs.sources)
	assert.Equal(t, "You write Go maps.", m.gotSystem)

	history := conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, chat.RoleUser, history[0].Role)
	assert.Equal(t, "show me Paris", history[0].Content)
	assert.Equal(t, chat.RoleAssistant, history[1].Role)
}

func TestAssistant_AskWithoutCode(t *testing.T) {
	runs := &fakeRuns{}
	svc, conv := newTestAssistant(&fakeModel{reply: "I need more detail."}, runs)

	turn, err := svc.Ask(context.Background(), "map")
	require.NoError(t, err)

	assert.Equal(t, StatusNoCode, turn.Status)
	assert.Empty(t, turn.RunID)
	assert.Empty(t, runs.codes)
	assert.Len(t, conv.History(), 2)
}

func TestAssistant_AskBlankMessage(t *testing.T) {
	m := &fakeModel{reply: "unused"}
	svc, conv := newTestAssistant(m, &fakeRuns{})

	_, err := svc.Ask(context.Background(), " \n ")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Empty(t, conv.History())
	assert.Empty(t, m.gotSystem, "the model must not be called")
}

func TestAssistant_AskModelFailure(t *testing.T) {
	apiErr := errors.New("quota exceeded")
	runs := &fakeRuns{}
	svc, conv := newTestAssistant(&fakeModel{err: apiErr}, runs)

	_, err := svc.Ask(context.Background(), "map")
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.ErrorIs(t, err, apiErr)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "The model is unavailable.")
	assert.Contains(t, appErr.Message, "quota exceeded")

	assert.Len(t, conv.History(), 1, "only the user message is recorded")
	assert.Empty(t, runs.codes)
}

func TestAssistant_AskEmptyReply(t *testing.T) {
	svc, _ := newTestAssistant(&fakeModel{reply: ""}, &fakeRuns{})

	_, err := svc.Ask(context.Background(), "map")
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	assert.ErrorIs(t, err, chat.ErrEmptyReply)
}

func TestAssistant_AskSubmitFailure(t *testing.T) {
	runs := &fakeRuns{err: apperror.Unavailable("execution is shutting down", nil)}
	svc, _ := newTestAssistant(&fakeModel{reply: "```go\nx := 1\n```"}, runs)

	turn, err := svc.Ask(context.Background(), "map")
	assert.ErrorIs(t, err, apperror.ErrUnavailable)
	require.NotNil(t, turn)
	assert.Equal(t, "x := 1", turn.Code)
}

func TestAssistant_Reset(t *testing.T) {
	svc, _ := newTestAssistant(&fakeModel{reply: "hi"}, &fakeRuns{})

	_, err := svc.Ask(context.Background(), "hello")
	require.NoError(t, err)
	require.NotEmpty(t, svc.History())

	svc.Reset()
	assert.Empty(t, svc.History())
}
