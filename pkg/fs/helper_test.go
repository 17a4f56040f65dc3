package fs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshfs/meshfs/pkg/cache"
)

// newGroupCache builds a memory-backed cache with a group-aware affinity
// mapper, the shape a data cache needs to back a file system.
func newGroupCache(t *testing.T, name string, groupSize int64) *cache.Cache {
	t.Helper()

	mapper, err := cache.NewGroupBlockMapper(groupSize)
	require.NoError(t, err)

	c, err := cache.New(cache.Config{Name: name, Affinity: mapper}, cache.NewMemoryStore())
	require.NoError(t, err)
	return c
}

// newPlainCache builds a memory-backed cache with the default hash mapper.
func newPlainCache(t *testing.T, name string) *cache.Cache {
	t.Helper()

	c, err := cache.New(cache.Config{Name: name}, cache.NewMemoryStore())
	require.NoError(t, err)
	return c
}

// newTestEngine registers the given caches in a fresh engine.
func newTestEngine(t *testing.T, caches ...*cache.Cache) *cache.Engine {
	t.Helper()

	engine := cache.NewEngine()
	for _, c := range caches {
		require.NoError(t, engine.AddCache(c))
	}
	return engine
}

// newFsEngine builds an engine with a standard meta/data cache pair for
// one file system.
func newFsEngine(t *testing.T, metaName, dataName string, groupSize int64) *cache.Engine {
	t.Helper()
	return newTestEngine(t, newPlainCache(t, metaName), newGroupCache(t, dataName, groupSize))
}
