// Package handler contains the HTTP handlers for mapchat.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, query, JSON body)
//  2. Call the service layer
//  3. Write the response (status code, headers, body)
//
// Handlers hold no business logic; they are the glue between HTTP and the
// services.
package handler

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/sakif/mapchat/internal/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

// PageHandler serves the chat page: the conversation on the left, the
// displayed artifact in a frame on the right.
type PageHandler struct {
	templates *template.Template
	assistant Assistant
	display   Display
	logger    *slog.Logger
}

// NewPageHandler parses the page templates once so requests only execute
// them. base.html holds the page shell and pulls in the "content" block
// defined by index.html.
func NewPageHandler(assistant Assistant, display Display, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{
		templates: tmpl,
		assistant: assistant,
		display:   display,
		logger:    logger,
	}, nil
}

type pageData struct {
	Title   string
	Status  string
	History []chat.Message
}

// HandleIndex renders the chat page.
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:   "Map Chat",
		Status:  h.display.State().Status,
		History: h.assistant.History(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
