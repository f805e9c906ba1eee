package versions

import (
	"context"
	"sort"
	"sync"
)

// Store persists entity logs. Implementations must be safe for concurrent
// use; the version store serializes writes per entity itself.
type Store interface {
	// Get returns the entity's log, oldest first. A missing entity yields
	// an empty log and no error.
	Get(ctx context.Context, entityID string) ([]DataVersion, error)
	// Put replaces the entity's log.
	Put(ctx context.Context, entityID string, log []DataVersion) error
	// Delete removes the entity's log.
	Delete(ctx context.Context, entityID string) error
	// List returns the ids of all stored entities.
	List(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	logs map[string][]DataVersion
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{logs: make(map[string][]DataVersion)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, entityID string) ([]DataVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyLog(m.logs[entityID]), nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, entityID string, log []DataVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(log) == 0 {
		delete(m.logs, entityID)
		return nil
	}
	m.logs[entityID] = copyLog(log)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.logs, entityID)
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.logs))
	for id := range m.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func copyLog(log []DataVersion) []DataVersion {
	if log == nil {
		return []DataVersion{}
	}
	out := make([]DataVersion, len(log))
	for i := range log {
		out[i] = *log[i].clone()
	}
	return out
}
