package storage

import (
	"context"
	"sort"
	"sync"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	calls   MockCalls

	// PutErr, when set, is returned by every Put.
	PutErr error
}

// MockCalls tracks method invocations for test verification.
type MockCalls struct {
	Put    int
	Get    int
	Delete int
	List   int
	Clear  int
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{entries: make(map[string][]byte)}
}

func (m *MockStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	data, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound{Key: key}
	}
	return append([]byte(nil), data...), nil
}

func (m *MockStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	if m.PutErr != nil {
		return m.PutErr
	}
	m.entries[key] = append([]byte(nil), data...)
	return nil
}

func (m *MockStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++

	if _, ok := m.entries[key]; !ok {
		return ErrNotFound{Key: key}
	}
	delete(m.entries, key)
	return nil
}

func (m *MockStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MockStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Clear++

	m.entries = make(map[string][]byte)
	return nil
}

func (m *MockStore) Close() error { return nil }

// Calls returns a snapshot of the invocation counters.
func (m *MockStore) Calls() MockCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Len returns the number of stored entries.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
