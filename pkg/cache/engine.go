package cache

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Engine is the node-local registry of running caches. File-system
// validation resolves metadata and data caches by name against it.
//
// Caches are added during node start and closed together when the node
// stops; lookups are safe for concurrent use.
type Engine struct {
	mu     sync.RWMutex
	caches map[string]*Cache
}

// NewEngine creates an empty cache engine.
func NewEngine() *Engine {
	return &Engine{caches: make(map[string]*Cache)}
}

// AddCache registers a cache under its configured name. Returns an error
// if a cache with the same name is already registered.
func (e *Engine) AddCache(c *Cache) error {
	if c == nil {
		return fmt.Errorf("cannot register nil cache")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.caches[c.Name()]; exists {
		return fmt.Errorf("cache %q already registered", c.Name())
	}

	e.caches[c.Name()] = c
	return nil
}

// Cache returns the cache registered under name, or false when no such
// cache is running locally.
func (e *Engine) Cache(name string) (*Cache, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.caches[name]
	return c, ok
}

// Names returns the names of all registered caches, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.caches))
	for name := range e.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered caches.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.caches)
}

// Close closes every registered cache. All caches get a close attempt;
// errors are collected.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for name, c := range e.caches {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache %q: %w", name, err))
		}
	}
	e.caches = make(map[string]*Cache)

	return errors.Join(errs...)
}
