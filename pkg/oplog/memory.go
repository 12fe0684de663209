package oplog

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Query implements Store.
func (m *MemoryStore) Query(_ context.Context, q Query) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := q.EffectiveLimit()
	out := make([]Entry, 0, min(limit, len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if q.Connector != "" && e.Connector != q.Connector {
			continue
		}
		if q.Status != "" && e.Status != q.Status {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Entries returns all entries in append order.
func (m *MemoryStore) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}

// Len returns the number of stored entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
