package storage

import (
	"context"
	"sync"
)

// Memory keeps snapshots in process memory. A positive limit caps the total
// bytes stored, mirroring a browser storage quota.
type Memory struct {
	mu     sync.RWMutex
	items  map[string][]byte
	limit  int
	used   int
	closed bool
}

// NewMemory returns an empty store; limit <= 0 disables the quota.
func NewMemory(limit int) *Memory {
	return &Memory{items: make(map[string][]byte), limit: limit}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}
	value, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	used := m.used - len(m.items[key]) + len(value)
	if m.limit > 0 && used > m.limit {
		return ErrQuotaExceeded
	}
	m.items[key] = append([]byte(nil), value...)
	m.used = used
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.used -= len(m.items[key])
	delete(m.items, key)
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

var _ Store = (*Memory)(nil)
