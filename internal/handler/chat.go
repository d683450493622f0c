package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/mapchat/internal/chat"
	"github.com/sakif/mapchat/internal/service"
)

// Assistant is the part of service.AssistantService the HTTP API uses.
type Assistant interface {
	Ask(ctx context.Context, message string) (*service.Turn, error)
	History() []chat.Message
	Reset()
}

// ChatHandler drives the conversation.
//
//	GET    /api/chat → conversation so far
//	POST   /api/chat → {"message": "..."} → {"reply", "status", "runId"}
//	DELETE /api/chat → start over
type ChatHandler struct {
	assistant Assistant
	logger    *slog.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(assistant Assistant, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{assistant: assistant, logger: logger}
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleSend answers one user message. When the reply contains code it is
// already executing by the time this returns; follow runId for the result.
func (h *ChatHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	turn, err := h.assistant.Ask(r.Context(), req.Message)
	if err != nil {
		h.logger.Warn("chat turn failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

// HandleHistory returns the conversation.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	history := h.assistant.History()
	if history == nil {
		history = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, history)
}

// HandleReset clears the conversation.
func (h *ChatHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	h.assistant.Reset()
	w.WriteHeader(http.StatusNoContent)
}
