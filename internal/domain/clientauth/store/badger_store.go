// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
)

// BadgerStore keeps flow history in an embedded badger database.
//
//	flow:<flowID>                          -> JSON snapshot
//	acct:<accountID>:<endedAt>:<flowID>    -> flowID (index, endedAt zero-padded nanos)
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens the database directory at path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("flow store: badger backend requires a directory")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("flow store: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// openInMemoryBadger is used by tests.
func openInMemoryBadger() (*BadgerStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func flowKey(id string) []byte {
	return []byte("flow:" + id)
}

func accountPrefix(account model.AccountID) []byte {
	return []byte("acct:" + string(account) + ":")
}

func indexKey(rec model.FlowSnapshot) []byte {
	return []byte(fmt.Sprintf("acct:%s:%020d:%s", rec.AccountID, rec.EndedAt.UnixNano(), rec.FlowID))
}

func (s *BadgerStore) PutFlow(_ context.Context, rec model.FlowSnapshot) error {
	if err := validate(rec); err != nil {
		return err
	}
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		// Drop the stale index entry when a record is replaced.
		item, err := txn.Get(flowKey(rec.FlowID))
		switch {
		case err == nil:
			var prev model.FlowSnapshot
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &prev) }); err != nil {
				return err
			}
			if err := txn.Delete(indexKey(prev)); err != nil {
				return err
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(flowKey(rec.FlowID), buf); err != nil {
			return err
		}
		return txn.Set(indexKey(rec), []byte(rec.FlowID))
	})
}

func (s *BadgerStore) LastFlow(ctx context.Context, account model.AccountID) (model.FlowSnapshot, bool, error) {
	list, err := s.ListFlows(ctx, account, 1)
	if err != nil || len(list) == 0 {
		return model.FlowSnapshot{}, false, err
	}
	return list[0], true, nil
}

func (s *BadgerStore) ListFlows(_ context.Context, account model.AccountID, limit int) ([]model.FlowSnapshot, error) {
	limit = normalizeLimit(limit)
	prefix := accountPrefix(account)

	var out []model.FlowSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must start past the last key carrying the prefix.
		seek := append(append([]byte{}, prefix...), 0xFF)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var id string
			if err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}

			item, err := txn.Get(flowKey(id))
			if err != nil {
				return fmt.Errorf("index points at missing flow %s: %w", id, err)
			}
			var rec model.FlowSnapshot
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	return out, nil
}
