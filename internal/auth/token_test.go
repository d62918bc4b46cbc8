// ABOUTME: Unit tests for session token issuing, verification and inspection
// ABOUTME: Tests valid tokens, invalid tokens, expired tokens and short secrets

package auth

import (
	"errors"
	"testing"
	"time"
)

var testSecret = []byte("session-token-test-secret-32b!!!")

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}

	token, err := issuer.Issue("ops@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	sub, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if sub != "ops@example.com" {
		t.Errorf("Verify() = %q, want %q", sub, "ops@example.com")
	}
}

func TestNewIssuer_ShortSecret(t *testing.T) {
	_, err := NewIssuer([]byte("too-short"), time.Hour)
	if !errors.Is(err, ErrSecretTooShort) {
		t.Errorf("NewIssuer() error = %v, want ErrSecretTooShort", err)
	}
}

func TestIssuer_InvalidToken(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, time.Hour)

	other, _ := NewIssuer([]byte("a-completely-different-secret-32"), time.Hour)
	foreign, _ := other.Issue("ops@example.com")

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "garbage token", token: "not-a-jwt-token"},
		{name: "malformed JWT", token: "header.payload.signature"},
		{name: "wrong secret", token: foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestIssuer_ExpiredToken(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, time.Minute)
	issuedAt := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issuedAt }

	token, err := issuer.Issue("ops@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	issuer.now = time.Now
	_, err = issuer.Verify(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify() error = %v, want ErrExpiredToken", err)
	}
}

func TestInspect(t *testing.T) {
	issuer, _ := NewIssuer(testSecret, 2*time.Hour)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return fixed }

	token, _ := issuer.Issue("ops@example.com")

	claims, err := Inspect(token)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if claims.Subject != "ops@example.com" {
		t.Errorf("Subject = %q", claims.Subject)
	}
	if !claims.IssuedAt.Equal(fixed) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt, fixed)
	}
	if !claims.ExpiresAt.Equal(fixed.Add(2 * time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, fixed.Add(2*time.Hour))
	}
	if !claims.Expired(fixed.Add(3 * time.Hour)) {
		t.Error("Expired() = false after expiry")
	}
	if claims.Expired(fixed.Add(time.Hour)) {
		t.Error("Expired() = true before expiry")
	}
}

func TestInspect_OpaqueToken(t *testing.T) {
	if _, err := Inspect("mock_token_1700000000"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Inspect() error = %v, want ErrInvalidToken", err)
	}
}
