package registry

import (
	"sync"

	"github.com/finsight/analyst/internal/model"
)

// memStore is an in-process Store with no durability, used in tests
// and as the Nop-style default (mirrors ai/rag.Nop's role in the
// teacher repo: a stand-in that satisfies the interface without doing
// real I/O).
type memStore struct {
	mu      sync.RWMutex
	entries map[string]*model.RegistryEntry
}

// NewMemoryStore returns a Store with no persistence across restarts.
// It exists for tests and for callers that don't need spec.md §3
// invariant 5's durability guarantee.
func NewMemoryStore() Store {
	return &memStore{entries: make(map[string]*model.RegistryEntry)}
}

func (m *memStore) Put(fp string, entry *model.RegistryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[fp] = entry
	return nil
}

func (m *memStore) Get(fp string) (*model.RegistryEntry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[fp]
	return e, ok, nil
}

func (m *memStore) All() ([]*model.RegistryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.RegistryEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) Delete(fp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, fp)
	return nil
}

func (m *memStore) Close() error { return nil }
