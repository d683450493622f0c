package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/chat"
	"github.com/sakif/mapchat/internal/codeblock"
	"github.com/sakif/mapchat/internal/config"
	"github.com/sakif/mapchat/internal/model"
)

// Status texts reported for an assistant turn.
const (
	StatusExecuting = "Executing visualization code..."
	StatusNoCode    = "No code to execute"
)

// Conversation is the chat history the assistant talks through.
// *chat.Manager implements it.
type Conversation interface {
	AddMessage(role chat.Role, content string)
	Respond(ctx context.Context, systemPrompt string) (string, error)
	History() []chat.Message
	Clear()
}

// PromptSource supplies the current prompts. *config.PromptStore
// implements it.
type PromptSource interface {
	Get() config.Prompts
}

// RunSubmitter starts a run. *RunService implements it.
type RunSubmitter interface {
	Submit(ctx context.Context, code string, source model.RunSource) (*model.Run, error)
}

// Turn is the outcome of one user message.
type Turn struct {
	Reply  string `json:"reply"`
	Code   string `json:"code,omitempty"`
	Status string `json:"status"`
	RunID  string `json:"runId,omitempty"`
}

// AssistantService drives a conversation turn: ask the model, show its
// reply, and execute the code it contains.
type AssistantService struct {
	chat    Conversation
	prompts PromptSource
	runs    RunSubmitter
	logger  *slog.Logger
}

// NewAssistantService creates an AssistantService.
func NewAssistantService(conv Conversation, prompts PromptSource, runs RunSubmitter, logger *slog.Logger) *AssistantService {
	return &AssistantService{
		chat:    conv,
		prompts: prompts,
		runs:    runs,
		logger:  logger,
	}
}

// Ask handles one user message.
//
// FLOW:
//  1. reject blank input
//  2. record the user message and ask the model (system prompt + history)
//  3. record the reply
//  4. extract the first ```go block; none → StatusNoCode
//  5. submit it → StatusExecuting with the run ID
//
// Model failures come back as ErrUnavailable carrying the configured
// api_error message. Execution results arrive later through the run.
func (s *AssistantService) Ask(ctx context.Context, message string) (*Turn, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.ValidationFailed("message", "message is required")
	}

	prompts := s.prompts.Get()
	s.chat.AddMessage(chat.RoleUser, message)

	s.logger.Debug("requesting assistant response")
	reply, err := s.chat.Respond(ctx, prompts.SystemPrompt)
	if err != nil {
		s.logger.Error("assistant request failed", slog.String("error", err.Error()))
		return nil, apperror.Unavailable(
			fmt.Sprintf("%s\n%v", prompts.ErrorMessages.APIError, err), err)
	}
	s.chat.AddMessage(chat.RoleAssistant, reply)

	turn := &Turn{Reply: reply}
	code, ok := codeblock.Extract(reply, codeblock.DefaultLang)
	if !ok || code == "" {
		s.logger.Warn("no code found in assistant response")
		turn.Status = StatusNoCode
		return turn, nil
	}
	turn.Code = code

	run, err := s.runs.Submit(ctx, code, model.SourceChat)
	if err != nil {
		return turn, fmt.Errorf("service/assistant: executing reply code: %w", err)
	}
	turn.Status = StatusExecuting
	turn.RunID = run.ID
	return turn, nil
}

// History returns the conversation so far.
func (s *AssistantService) History() []chat.Message {
	return s.chat.History()
}

// Reset starts a new conversation. The interpreter session is unaffected.
func (s *AssistantService) Reset() {
	s.chat.Clear()
	s.logger.Info("conversation cleared")
}
