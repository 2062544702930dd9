package conversation

import (
	"context"
	"sync"
)

// Store persists bridged records per tenant.
type Store interface {
	Append(ctx context.Context, r Record) error
	ListRecent(ctx context.Context, tenantID int64, limit int) ([]Record, error)
}

// MemoryStore keeps records in process memory, newest last.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[int64][]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[int64][]Record)}
}

func (m *MemoryStore) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[r.TenantID] = append(m.records[r.TenantID], r)
	return nil
}

func (m *MemoryStore) ListRecent(_ context.Context, tenantID int64, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.records[tenantID]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	out := make([]Record, 0, limit)
	for i := len(all) - 1; i >= len(all)-limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}
