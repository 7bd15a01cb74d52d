package client

import "sync"

// TokenStore holds the client's session tokens. It is injected so callers
// can back it with whatever storage they have and swap it out in tests.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(access, refresh string)
	Clear()
}

// MemoryStore is the default in-process TokenStore.
type MemoryStore struct {
	mu      sync.RWMutex
	access  string
	refresh string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *MemoryStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryStore) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}
