// ABOUTME: Operator login: form validation, bcrypt password check, token issue
// ABOUTME: Dev mode accepts any well-formed credentials, matching the demo console

package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/pharma-console/internal/config"
)

// Login errors
var (
	ErrEmailRequired      = errors.New("email is required")
	ErrPasswordRequired   = errors.New("password is required")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Authenticator checks operator credentials and issues session tokens.
type Authenticator struct {
	operators map[string][]byte // normalised email -> bcrypt hash
	devMode   bool
	issuer    *Issuer
	logger    *slog.Logger
}

// NewAuthenticator builds an authenticator from config. In dev mode an
// empty session secret is replaced by a random per-process secret.
func NewAuthenticator(cfg config.AuthConfig, logger *slog.Logger) (*Authenticator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 && cfg.DevMode {
		secret = make([]byte, MinSecretLength)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
	}

	issuer, err := NewIssuer(secret, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	operators := make(map[string][]byte, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators[normaliseEmail(op.Email)] = []byte(op.PasswordHash)
	}

	return &Authenticator{
		operators: operators,
		devMode:   cfg.DevMode,
		issuer:    issuer,
		logger:    logger.With("component", "auth"),
	}, nil
}

// Login validates the submitted credentials and returns a new session token.
func (a *Authenticator) Login(email, password string) (string, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return "", err
	}
	email = normaliseEmail(email)

	hash, known := a.operators[email]
	switch {
	case known:
		if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
			a.logger.Info("login rejected", "email", email)
			return "", ErrInvalidCredentials
		}
	case a.devMode:
		a.logger.Warn("dev mode login accepted without verification", "email", email)
	default:
		a.logger.Info("login rejected: unknown operator", "email", email)
		return "", ErrInvalidCredentials
	}

	token, err := a.issuer.Issue(email)
	if err != nil {
		return "", fmt.Errorf("issuing session token: %w", err)
	}
	a.logger.Info("operator logged in", "email", email)
	return token, nil
}

// ValidateCredentials applies the login form rules. The first failing rule
// is returned.
func ValidateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmailRequired
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// HashPassword produces a bcrypt hash suitable for auth.operators.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
