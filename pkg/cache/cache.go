package cache

import (
	"fmt"
	"sync/atomic"
)

// Cache is one named cache of the grid: a key-value store plus the
// affinity mapping that places keys on logical partitions.
//
// The configuration is immutable after construction. Entry operations are
// safe for concurrent use; the storage backend provides the locking.
type Cache struct {
	cfg   Config
	store Store

	// size tracks the total byte size of stored values.
	size atomic.Int64
}

// New creates a cache with the given configuration over the given storage
// backend. Unset configuration fields receive grid defaults.
func New(cfg Config, store Store) (*Cache, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("cache name is required")
	}
	if store == nil {
		return nil, fmt.Errorf("cache %q: store is required", cfg.Name)
	}

	return &Cache{cfg: cfg.withDefaults(), store: store}, nil
}

// Config returns the cache's immutable configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// Name returns the cache name.
func (c *Cache) Name() string {
	return c.cfg.Name
}

// Partition returns the logical partition the key maps onto.
func (c *Cache) Partition(key any) int {
	return c.cfg.Affinity.Partition(key, c.cfg.Partitions)
}

// Get returns the value stored under key and whether it exists.
func (c *Cache) Get(key any) ([]byte, bool, error) {
	return c.store.Get(keyString(key))
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(key any, value []byte) error {
	ks := keyString(key)

	old, existed, err := c.store.Get(ks)
	if err != nil {
		return err
	}
	if err := c.store.Put(ks, value); err != nil {
		return err
	}

	delta := int64(len(value))
	if existed {
		delta -= int64(len(old))
	}
	c.size.Add(delta)
	return nil
}

// Delete removes key from the cache. Returns whether the key existed.
func (c *Cache) Delete(key any) (bool, error) {
	ks := keyString(key)

	old, existed, err := c.store.Get(ks)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}

	removed, err := c.store.Delete(ks)
	if err != nil {
		return false, err
	}
	if removed {
		c.size.Add(-int64(len(old)))
	}
	return removed, nil
}

// ForEach calls fn for every entry in the cache.
func (c *Cache) ForEach(fn func(key string, value []byte) error) error {
	return c.store.ForEach(fn)
}

// Len returns the number of entries in the cache.
func (c *Cache) Len() (int, error) {
	return c.store.Len()
}

// Size returns the total byte size of values written through this cache.
func (c *Cache) Size() int64 {
	return c.size.Load()
}

// Close releases the storage backend.
func (c *Cache) Close() error {
	return c.store.Close()
}
