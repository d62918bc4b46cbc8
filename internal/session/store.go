// ABOUTME: Session credential store interface and the in-memory implementation
// ABOUTME: Holds the single active session token under the well-known authToken key

package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/2389/pharma-console/internal/config"
)

// CredentialKey is the well-known key the session token is stored under.
const CredentialKey = "authToken"

// Store holds at most one session credential. Get returns an empty string
// when no credential is present. Clear is idempotent.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// MemoryStore keeps the credential in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryStore returns a store seeded with token (may be empty).
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

func (s *MemoryStore) Get() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) Set(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// Open builds the store selected by cfg. The returned closer releases any
// underlying resources and is never nil.
func Open(cfg config.SessionConfig) (Store, io.Closer, error) {
	switch cfg.Backend {
	case config.SessionBackendMemory:
		return NewMemoryStore(""), nopCloser{}, nil
	case config.SessionBackendSQLite:
		path, err := cfg.ResolvedPath()
		if err != nil {
			return nil, nil, err
		}
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.SessionBackendFile, "":
		path, err := cfg.ResolvedPath()
		if err != nil {
			return nil, nil, err
		}
		return NewFileStore(path), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
