// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store keeps the history of terminal authentication flows.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
)

// ErrInvalidRecord rejects records that are not terminal snapshots.
var ErrInvalidRecord = errors.New("flow record requires flow id, account id and end time")

const defaultListLimit = 20

// FlowRecordStore persists terminal flow snapshots.
type FlowRecordStore interface {
	// PutFlow inserts or replaces the record for rec.FlowID.
	PutFlow(ctx context.Context, rec model.FlowSnapshot) error
	// LastFlow returns the most recently ended flow for account.
	LastFlow(ctx context.Context, account model.AccountID) (model.FlowSnapshot, bool, error)
	// ListFlows returns up to limit records for account, newest first.
	ListFlows(ctx context.Context, account model.AccountID, limit int) ([]model.FlowSnapshot, error)
	Close() error
}

func validate(rec model.FlowSnapshot) error {
	if rec.FlowID == "" || rec.AccountID == "" || rec.EndedAt.IsZero() {
		return ErrInvalidRecord
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// OpenFlowStore creates a FlowRecordStore for the configured backend.
func OpenFlowStore(backend, path string) (FlowRecordStore, error) {
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		return NewMemoryStore(0), nil
	case "sqlite":
		return NewSqliteStore(path)
	case "badger":
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
