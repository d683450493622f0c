package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/mapchat/internal/apperror"
	"github.com/sakif/mapchat/internal/auth"
)

// AuthService exchanges the operator password for an API token.
//
//	TokenHandler (HTTP) → AuthService → PasswordService (bcrypt)
//	                                  ↘ TokenService (JWT)
type AuthService struct {
	tokens       *auth.TokenService
	passwords    *auth.PasswordService
	passwordHash string
	logger       *slog.Logger
}

// NewAuthService creates an AuthService. passwordHash is the bcrypt hash of
// the operator password; when empty, Login always fails.
func NewAuthService(tokens *auth.TokenService, passwords *auth.PasswordService, passwordHash string, logger *slog.Logger) *AuthService {
	return &AuthService{
		tokens:       tokens,
		passwords:    passwords,
		passwordHash: passwordHash,
		logger:       logger,
	}
}

// Login verifies password and returns a signed token.
func (s *AuthService) Login(_ context.Context, password string) (string, error) {
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}
	if s.passwordHash == "" {
		return "", apperror.Forbidden("password login is not configured")
	}

	if err := s.passwords.Verify(s.passwordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.logger.Warn("rejected login attempt")
			return "", apperror.Forbidden("invalid password")
		}
		return "", fmt.Errorf("service/auth: verifying password: %w", err)
	}

	token, err := s.tokens.Generate(auth.OperatorSubject)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token: %w", err)
	}

	s.logger.Info("operator token issued")
	return token, nil
}
