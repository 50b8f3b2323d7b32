package api

import "sync"

// TokenSource provides the bearer token attached to every authenticated request
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed token, typically read from the environment
type StaticToken string

// Token returns the token
func (t StaticToken) Token() string {
	return string(t)
}

// TokenStore keeps the token obtained at login for the lifetime of the process
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a store seeded with an optional token
func NewTokenStore(token string) *TokenStore {
	return &TokenStore{token: token}
}

// Token returns the current token
func (s *TokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set replaces the current token
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

// Clear forgets the current token
func (s *TokenStore) Clear() {
	s.Set("")
}
