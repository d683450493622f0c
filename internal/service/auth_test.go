package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/auth"
)

func newTestAuthService(t *testing.T, password string) (*AuthService, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	var hash string
	if password != "" {
		hash, err = passwords.Hash(password)
		require.NoError(t, err)
	}
	return NewAuthService(tokens, passwords, hash, newTestLogger()), tokens
}

func TestAuthService_Login(t *testing.T) {
	svc, tokens := newTestAuthService(t, "open sesame")

	token, err := svc.Login(context.Background(), "open sesame")
	require.NoError(t, err)

	claims, err := tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, auth.OperatorSubject, claims.Subject)
}

func TestAuthService_LoginFailures(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		password   string
		wantErr    error
	}{
		{name: "wrong password", configured: "open sesame", password: "guess", wantErr: apperror.ErrForbidden},
		{name: "empty password", configured: "open sesame", password: "", wantErr: apperror.ErrValidation},
		{name: "login not configured", configured: "", password: "anything", wantErr: apperror.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestAuthService(t, tt.configured)

			token, err := svc.Login(context.Background(), tt.password)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, token)
		})
	}
}
