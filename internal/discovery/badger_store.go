// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerStore keeps saved data in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens the database in dir. An empty dir opens an
// in-memory database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("app store: open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Load(context.Context) ([]string, error) {
	var apps []string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(SavedDataKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeApps(val)
			apps = decoded
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("app store: load: %w", err)
	}
	return apps, nil
}

func (s *BadgerStore) Save(_ context.Context, apps []string) error {
	raw, err := encodeApps(apps)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(SavedDataKey), raw)
	}); err != nil {
		return fmt.Errorf("app store: save: %w", err)
	}
	return nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }
