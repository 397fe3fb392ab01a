package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/verdict/internal/ports"
)

// BadgerStorage implements ports.StoragePort on an embedded badger
// database. Badger's SSI transactions give us the create-if-absent and
// compare-and-delete semantics as single atomic operations; native entry
// TTLs enforce expiry at the store, not in the caller.
type BadgerStorage struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewBadgerStorage opens (or creates) the database under dataDir. An empty
// dataDir opens an in-memory instance, which is useful for tests.
func NewBadgerStorage(dataDir string, logger *slog.Logger) (*BadgerStorage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(dataDir)
	if dataDir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerStorage{
		db:     db,
		logger: logger.With("component", "badger-storage"),
	}, nil
}

func (s *BadgerStorage) Get(ctx context.Context, key string) (value []byte, exists bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		exists = true
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, exists, err
}

func (s *BadgerStorage) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.update(func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry(key, value, ttl))
	})
}

func (s *BadgerStorage) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	created := false
	err := s.update(func(txn *badger.Txn) error {
		created = false
		_, err := txn.Get([]byte(key))
		if err == nil {
			return nil
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.SetEntry(newEntry(key, value, ttl)); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *BadgerStorage) CompareAndPut(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	swapped := false
	err := s.update(func(txn *badger.Txn) error {
		swapped = false
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !bytes.Equal(current, expected) {
			return nil
		}

		if err := txn.SetEntry(newEntry(key, value, ttl)); err != nil {
			return err
		}
		swapped = true
		return nil
	})
	return swapped, err
}

func (s *BadgerStorage) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	deleted := false
	err := s.update(func(txn *badger.Txn) error {
		deleted = false
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		current, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if !bytes.Equal(current, expected) {
			return nil
		}

		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

func (s *BadgerStorage) Delete(ctx context.Context, key string) error {
	return s.update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

func (s *BadgerStorage) Close() error {
	return s.db.Close()
}

// update retries on transaction conflicts so concurrent callers converge
// on serializable outcomes instead of surfacing ErrConflict.
func (s *BadgerStorage) update(fn func(txn *badger.Txn) error) error {
	for {
		err := s.db.Update(fn)
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
}

func newEntry(key string, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}

var _ ports.StoragePort = (*BadgerStorage)(nil)
