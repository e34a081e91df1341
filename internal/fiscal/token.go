package fiscal

import (
	"context"
	"sync"
)

// TokenStore persists access tokens per derived key. Implementations need
// only atomic get/set per key; concurrent refreshes are benign because the
// gateway's credential exchange is idempotent per credential pair.
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

const tokenKeyPrefix = "fiscalgate:token:"

// tokenKey derives the storage key for a cash-register group, so multiple
// registers hold independent tokens.
func tokenKey(groupCode string) string {
	return tokenKeyPrefix + groupCode
}

// MemoryTokenStore is a process-local TokenStore. Used in tests and as a
// fallback when no shared store is configured.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]string)}
}

func (s *MemoryTokenStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[key], nil
}

func (s *MemoryTokenStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = value
	return nil
}
