package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type contextKey string

const subjectKey contextKey = "subject"

// CookieName is the cookie a browser may carry the token in.
const CookieName = "token"

// RequireAuth rejects requests without a valid token with 401.
//
// The token is read from the Authorization header ("Bearer <token>") or,
// failing that, from the token cookie so /view can be opened in a browser.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := extractClaims(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="mapchat"`)
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SubjectFromContext returns the token subject stored by RequireAuth.
func SubjectFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(subjectKey).(string)
	return s, ok && s != ""
}

var errNoToken = errors.New("auth: no token")

func extractClaims(r *http.Request, tokens *TokenService) (*Claims, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return nil, errNoToken
		}
		return tokens.Validate(strings.TrimSpace(token))
	}

	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, errNoToken
	}
	return tokens.Validate(cookie.Value)
}
