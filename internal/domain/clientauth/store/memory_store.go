// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
)

const defaultMemoryRetention = 100

// MemoryStore keeps a bounded per-account history in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	retention int
	byAccount map[model.AccountID][]model.FlowSnapshot
}

// NewMemoryStore keeps at most retention records per account (0 selects the default).
func NewMemoryStore(retention int) *MemoryStore {
	if retention <= 0 {
		retention = defaultMemoryRetention
	}
	return &MemoryStore{
		retention: retention,
		byAccount: make(map[model.AccountID][]model.FlowSnapshot),
	}
}

func (s *MemoryStore) PutFlow(_ context.Context, rec model.FlowSnapshot) error {
	if err := validate(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byAccount[rec.AccountID]
	replaced := false
	for i := range list {
		if list[i].FlowID == rec.FlowID {
			list[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, rec)
	}
	// Newest first.
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].EndedAt.After(list[j].EndedAt)
	})
	if len(list) > s.retention {
		list = list[:s.retention]
	}
	s.byAccount[rec.AccountID] = list
	return nil
}

func (s *MemoryStore) LastFlow(_ context.Context, account model.AccountID) (model.FlowSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byAccount[account]
	if len(list) == 0 {
		return model.FlowSnapshot{}, false, nil
	}
	return list[0], true, nil
}

func (s *MemoryStore) ListFlows(_ context.Context, account model.AccountID, limit int) ([]model.FlowSnapshot, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.byAccount[account]
	if len(list) > limit {
		list = list[:limit]
	}
	out := make([]model.FlowSnapshot, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
