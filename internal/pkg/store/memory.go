package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bissquit/onestop-itsm/internal/pkg/metrics"
)

// Memory is a process-local Store. Records are kept serialized so callers
// never share memory with the store.
type Memory[T any] struct {
	kind string

	mu    sync.RWMutex
	order []string
	data  map[string][]byte
}

// NewMemory creates an empty in-memory store for the record kind.
func NewMemory[T any](kind string) *Memory[T] {
	return &Memory[T]{
		kind: kind,
		data: make(map[string][]byte),
	}
}

// Create stores a new record.
func (m *Memory[T]) Create(_ context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.kind, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; ok {
		return ErrConflict
	}
	m.data[id] = raw
	m.order = append(m.order, id)
	metrics.RecordStoreSize(m.kind, len(m.order))
	return nil
}

// Get returns the record with the given id.
func (m *Memory[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	raw, ok := m.data[id]
	m.mu.RUnlock()

	var v T
	if !ok {
		return v, ErrNotFound
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", m.kind, err)
	}
	return v, nil
}

// List returns all records in insertion order.
func (m *Memory[T]) List(_ context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		var v T
		if err := json.Unmarshal(m.data[id], &v); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", m.kind, id, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Update replaces an existing record.
func (m *Memory[T]) Update(_ context.Context, id string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.kind, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; !ok {
		return ErrNotFound
	}
	m.data[id] = raw
	return nil
}

// Delete removes a record.
func (m *Memory[T]) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.data[id]; !ok {
		return ErrNotFound
	}
	delete(m.data, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	metrics.RecordStoreSize(m.kind, len(m.order))
	return nil
}

// Count returns the number of stored records.
func (m *Memory[T]) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order), nil
}
