package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/mapchat/internal/auth"
)

// Login is the part of service.AuthService the HTTP API uses.
type Login interface {
	Login(ctx context.Context, password string) (string, error)
}

// TokenHandler exchanges the operator password for an API token.
//
// HTTP: POST /api/token  {"password": "..."} → {"token": "..."}
//
// The token is returned in the body for API clients and also set as an
// HttpOnly cookie so a browser can open /view directly.
type TokenHandler struct {
	login  Login
	ttl    time.Duration
	logger *slog.Logger
}

// NewTokenHandler creates a TokenHandler. ttl sets the cookie lifetime and
// should match the token lifetime.
func NewTokenHandler(login Login, ttl time.Duration, logger *slog.Logger) *TokenHandler {
	return &TokenHandler{login: login, ttl: ttl, logger: logger}
}

type tokenRequest struct {
	Password string `json:"password"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token string `json:"token"`
}

// HandleToken verifies the password and issues a token.
func (h *TokenHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.login.Login(r.Context(), req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	// SameSite=Lax: sent on top-level navigation, not on cross-site POSTs.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// HandleLogout clears the token cookie. The token itself stays valid until
// it expires.
func (h *TokenHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}
