// Package chat keeps the conversation with the language model.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("chat: model returned an empty reply")

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client sends a conversation to a language model and returns its reply.
type Client interface {
	Complete(ctx context.Context, systemPrompt string, history []Message) (string, error)
}

// Manager owns the append-only conversation history. It is safe for
// concurrent use.
type Manager struct {
	client Client
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	history []Message
}

// NewManager creates a Manager with an empty history.
func NewManager(client Client, logger *slog.Logger) *Manager {
	return &Manager{
		client: client,
		logger: logger,
		now:    time.Now,
	}
}

// AddMessage appends a message to the history.
func (m *Manager) AddMessage(role Role, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, Message{Role: role, Content: content, CreatedAt: m.now()})
}

// Respond sends the system prompt and the full history to the model.
// The reply is not recorded; callers add it with AddMessage once they have
// shown it.
func (m *Manager) Respond(ctx context.Context, systemPrompt string) (string, error) {
	history := m.History()

	m.logger.Debug("requesting model response", slog.Int("messages", len(history)))
	reply, err := m.client.Complete(ctx, systemPrompt, history)
	if err != nil {
		return "", fmt.Errorf("chat: getting response: %w", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", ErrEmptyReply
	}
	m.logger.Debug("model response received", slog.Int("length", len(reply)))
	return reply, nil
}

// History returns a copy of the conversation so far.
func (m *Manager) History() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.history))
	copy(out, m.history)
	return out
}

// Clear drops the whole conversation.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}
