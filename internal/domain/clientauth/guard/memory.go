// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package guard

import (
	"context"
	"sync"
	"time"
)

// MemoryLeases is the single-process admission set. TTLs are ignored: an
// in-process lease cannot outlive its holder.
type MemoryLeases struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewMemoryLeases returns an empty admission set.
func NewMemoryLeases() *MemoryLeases {
	return &MemoryLeases{owners: make(map[string]string)}
}

func (m *MemoryLeases) TryAcquire(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.owners[key]; held {
		return false, nil
	}
	m.owners[key] = owner
	return true, nil
}

func (m *MemoryLeases) Release(_ context.Context, key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[key] == owner {
		delete(m.owners, key)
	}
	return nil
}

func (m *MemoryLeases) Held(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, held := m.owners[key]
	return held, nil
}

// Len returns the number of held leases.
func (m *MemoryLeases) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.owners)
}
