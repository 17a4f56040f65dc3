package cache

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// badgerStore is a persistent Store backend over a badger database.
// Caches that must survive node restarts (typically metadata caches) can
// select it with store type "badger" in the node configuration.
type badgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database at path and wraps it
// as a cache Store.
func NewBadgerStore(path string) (Store, error) {
	if path == "" {
		return nil, fmt.Errorf("badger store: path is required")
	}

	opts := badger.DefaultOptions(path)
	opts = opts.WithLoggingLevel(badger.WARNING) // Reduce log noise

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %q: %w", path, err)
	}

	return &badgerStore{db: db}, nil
}

func (s *badgerStore) Get(key string) ([]byte, bool, error) {
	var value []byte

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("badger get %q: %w", key, err)
	}

	return value, true, nil
}

func (s *badgerStore) Put(key string, value []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("badger put %q: %w", key, err)
	}
	return nil
}

func (s *badgerStore) Delete(key string) (bool, error) {
	existed := false

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		existed = true
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return false, fmt.Errorf("badger delete %q: %w", key, err)
	}

	return existed, nil
}

func (s *badgerStore) ForEach(fn func(key string, value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(string(item.Key()), value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *badgerStore) Len() (int, error) {
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger len: %w", err)
	}

	return count, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
