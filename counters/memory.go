package counters

import (
	"context"
	"sync"
)

// keySet is the exact state of one collection.
type keySet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// Memory implements Counters with exact in-memory sets. Each collection has
// its own lock, so adds to unrelated collections do not contend.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*keySet
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*keySet),
	}
}

func (m *Memory) collection(name string, create bool) *keySet {
	m.mu.RLock()
	s, ok := m.collections[name]
	m.mu.RUnlock()
	if ok || !create {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok = m.collections[name]; !ok {
		s = &keySet{keys: make(map[string]struct{})}
		m.collections[name] = s
	}
	return s
}

// Add merges keys into the collection's set.
func (m *Memory) Add(ctx context.Context, collection string, keys [][]byte) error {
	if len(keys) == 0 {
		return nil
	}
	s := m.collection(collection, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.keys[string(k)] = struct{}{}
	}
	return nil
}

// GetCount returns the exact number of distinct keys in the collection.
func (m *Memory) GetCount(ctx context.Context, collection string) (int64, error) {
	s := m.collection(collection, false)
	if s == nil {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.keys)), nil
}

// GetCounters returns the names of all non-empty collections. A set created
// by an Add that has not merged its keys yet is not listed.
func (m *Memory) GetCounters(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name, s := range m.collections {
		s.mu.Lock()
		n := len(s.keys)
		s.mu.Unlock()
		if n > 0 {
			names = append(names, name)
		}
	}
	return names, nil
}

// Check always succeeds.
func (m *Memory) Check(ctx context.Context) error {
	return nil
}
