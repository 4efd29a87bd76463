package store

import (
	"context"
	"sync"
)

type inMemory struct {
	mu      sync.RWMutex
	storage map[string][]Record
}

// NewMemoryStore returns a process-local ResultStore.
func NewMemoryStore() ResultStore {
	return &inMemory{}
}

func (m *inMemory) Append(_ context.Context, executionID string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string][]Record)
	}
	m.storage[executionID] = append(m.storage[executionID], rec)
	return nil
}

func (m *inMemory) Records(_ context.Context, executionID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.storage == nil {
		return nil, nil
	}
	recs := m.storage[executionID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

func (m *inMemory) Reset(_ context.Context, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage != nil {
		delete(m.storage, executionID)
	}
	return nil
}
