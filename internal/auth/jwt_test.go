package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		ttl     time.Duration
		wantErr bool
	}{
		{name: "valid", secret: "this-is-16-chars", ttl: time.Minute},
		{name: "short secret", secret: "short", ttl: time.Minute, wantErr: true},
		{name: "zero ttl", secret: "this-is-16-chars", ttl: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenService(tt.secret, tt.ttl)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTokenService() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateAndValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate(OperatorSubject)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("token %q is not header.payload.signature", token)
	}

	claims, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.Subject != OperatorSubject {
		t.Errorf("Subject = %q, want %q", claims.Subject, OperatorSubject)
	}
	if claims.Issuer != "mapchat" {
		t.Errorf("Issuer = %q, want mapchat", claims.Issuer)
	}
	if claims.ID == "" {
		t.Error("token has no jti")
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 || remaining > time.Hour {
		t.Errorf("expiry %v is outside the configured TTL", remaining)
	}
}

func TestGenerate_UniqueTokenIDs(t *testing.T) {
	ts := newTestTokenService(t)

	a, _ := ts.Generate(OperatorSubject)
	b, _ := ts.Generate(OperatorSubject)

	ca, err := ts.Validate(a)
	if err != nil {
		t.Fatalf("Validate(a) error = %v", err)
	}
	cb, err := ts.Validate(b)
	if err != nil {
		t.Fatalf("Validate(b) error = %v", err)
	}
	if ca.ID == cb.ID {
		t.Error("two tokens share a jti")
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	other, err := NewTokenService("a-completely-different-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	expired, _ := ts.GenerateWithDuration(OperatorSubject, -time.Minute)
	foreign, _ := other.Generate(OperatorSubject)
	noSubject, _ := ts.Generate("")
	valid, _ := ts.Generate(OperatorSubject)
	tampered := valid[:len(valid)-2] + "xx"

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   OperatorSubject,
		Issuer:    "mapchat",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	algNone, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"no subject":   noSubject,
		"tampered":     tampered,
		"alg none":     algNone,
		"garbage":      "not.a.jwt",
		"empty":        "",
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ts.Validate(token); err == nil {
				t.Error("Validate() accepted an invalid token")
			}
		})
	}
}
