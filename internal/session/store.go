package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when no session exists for a phone.
var ErrSessionNotFound = errors.New("session not found")

// Store persists one session per phone.
type Store interface {
	Get(ctx context.Context, phone string) (Session, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, phone string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	List(ctx context.Context) ([]Session, error)
}

// MemoryStore keeps sessions in process memory. Suitable for single-node
// deployments and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, phone string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[phone]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Phone] = s
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[phone]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, phone)
	return nil
}

func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for phone, s := range m.sessions {
		if s.ExpiredAt(now) {
			delete(m.sessions, phone)
			removed++
		}
	}
	return removed, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out, nil
}
