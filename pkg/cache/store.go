package cache

import (
	"fmt"
	"sync"
)

// Store is the storage backend of a single cache. Implementations must be
// safe for concurrent use.
//
// Two backends ship with the node: an in-memory store (the default) and a
// badger-backed persistent store for caches that must survive restarts.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(key string) ([]byte, bool, error)

	// Put stores value under key, replacing any previous value.
	Put(key string, value []byte) error

	// Delete removes key. Returns whether the key existed.
	Delete(key string) (bool, error)

	// ForEach calls fn for every entry. Iteration stops on the first error.
	ForEach(fn func(key string, value []byte) error) error

	// Len returns the number of stored entries.
	Len() (int, error)

	// Close releases backend resources.
	Close() error
}

// memoryStore is the default in-memory backend.
type memoryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	closed  bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{entries: make(map[string][]byte)}
}

func (s *memoryStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, false, fmt.Errorf("store is closed")
	}

	v, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}

	// Copy so callers cannot mutate stored values.
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *memoryStore) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.entries[key] = stored
	return nil
}

func (s *memoryStore) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	return ok, nil
}

func (s *memoryStore) ForEach(fn func(key string, value []byte) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	for k, v := range s.entries {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *memoryStore) Len() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.entries = nil
	return nil
}
