package store

import (
	"context"
	"sync"
)

// Memory is an in-memory Store used by tests and by deployments that run
// without a database.
type Memory struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: map[string]Item{}}
}

func (m *Memory) Upsert(_ context.Context, item Item) error {
	if item.ItemID == "" {
		return ErrMissingID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ItemID] = item
	return nil
}

// Get returns the stored item for id, if any.
func (m *Memory) Get(id string) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	return item, ok
}

// Len returns the number of distinct items stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Close() {}
