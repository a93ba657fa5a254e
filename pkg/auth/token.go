// Package auth manages the bearer token lifecycle: set on successful login,
// cleared on logout, read-only to everything else. The pipeline never
// refreshes or retries an expired token; it only reports that re-login is
// required.
package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenSource yields the current bearer token, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Store persists a single bearer token under a well-known file, the way the
// original client kept it under one user-defaults key.
type Store struct {
	mu    sync.RWMutex
	path  string
	token string
}

// DefaultPath returns the conventional token location under the user config
// directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".glasscloset-token")
	}
	return filepath.Join(dir, "glasscloset", "access_token")
}

// NewStore creates a store backed by the given file and loads any saved
// token. A missing file simply means no session.
func NewStore(path string) *Store {
	s := &Store{path: path}
	if data, err := os.ReadFile(path); err == nil {
		s.token = strings.TrimSpace(string(data))
	}
	return s
}

// NewMemoryStore creates an unpersisted store, useful for tests.
func NewMemoryStore() *Store {
	return &Store{}
}

// Token returns the current bearer token and whether one is set.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set stores the token and persists it when the store is file-backed.
func (s *Store) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token), 0o600)
}

// Clear drops the token and removes the persisted copy.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	if s.path == "" {
		return nil
	}
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
