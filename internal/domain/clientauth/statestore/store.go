// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package statestore holds the last known lifecycle state of the external client.
//
// The Store is a single shared cell with an observer list. It is created once at
// daemon start and handed to every component that needs it; there is no package
// level instance.
package statestore

import (
	"sync"
	"time"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/metrics"
)

// Listener is invoked synchronously on every Set, including redundant ones.
type Listener func(state model.ClientState)

// Reader is the read-only view handed to components that must not write the cell.
type Reader interface {
	Current() model.ClientState
	OnChange(l Listener) (unsubscribe func())
}

type listenerEntry struct {
	fn Listener
}

// Store is a last-write-wins state cell.
type Store struct {
	mu        sync.RWMutex
	state     model.ClientState
	updatedAt time.Time
	listeners []*listenerEntry
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for Snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New returns a store in the CHECKING state.
func New(opts ...Option) *Store {
	s := &Store{
		state: model.ClientChecking,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.updatedAt = s.now()
	metrics.SetClientState(string(s.state))
	return s
}

// Current returns the last known state. It never blocks on listeners.
func (s *Store) Current() model.ClientState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the current state and when it was last written.
func (s *Store) Snapshot() (model.ClientState, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.updatedAt
}

// Set overwrites the current state and notifies every listener before returning.
// Listeners run outside the lock and may call back into the store.
func (s *Store) Set(state model.ClientState) {
	s.mu.Lock()
	s.state = state
	s.updatedAt = s.now()
	listeners := make([]*listenerEntry, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	metrics.SetClientState(string(state))

	for _, l := range listeners {
		l.fn(state)
	}
}

// OnChange registers l. The returned func removes it and is safe to call more than once.
func (s *Store) OnChange(l Listener) (unsubscribe func()) {
	entry := &listenerEntry{fn: l}

	s.mu.Lock()
	s.listeners = append(s.listeners, entry)
	n := len(s.listeners)
	s.mu.Unlock()
	metrics.SetStateListeners(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			for i, e := range s.listeners {
				if e == entry {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					break
				}
			}
			n := len(s.listeners)
			s.mu.Unlock()
			metrics.SetStateListeners(n)
		})
	}
}

// ListenerCount returns the number of registered listeners.
func (s *Store) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}
