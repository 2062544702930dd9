package token

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTokenNotFound is returned when a token is unknown to the store,
// whether it never existed or was already removed.
var ErrTokenNotFound = errors.New("token not found")

// BusinessToken is one short-lived grant: the bearer acts as the operator
// inside the tenant until expiry.
type BusinessToken struct {
	Token      string    `json:"-"`
	OperatorID string    `json:"operator_id"`
	TenantID   int64     `json:"tenant_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (t BusinessToken) ExpiredAt(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// Store persists issued tokens keyed by their opaque value.
type Store interface {
	Save(ctx context.Context, t BusinessToken) error
	Find(ctx context.Context, token string) (BusinessToken, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// MemoryStore keeps tokens in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]BusinessToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]BusinessToken)}
}

func (m *MemoryStore) Save(_ context.Context, t BusinessToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[t.Token] = t
	return nil
}

func (m *MemoryStore) Find(_ context.Context, token string) (BusinessToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[token]
	if !ok {
		return BusinessToken{}, ErrTokenNotFound
	}
	return t, nil
}

func (m *MemoryStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, t := range m.tokens {
		if t.ExpiredAt(now) {
			delete(m.tokens, key)
			removed++
		}
	}
	return removed, nil
}
