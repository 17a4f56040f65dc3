package fs

import (
	"fmt"
	"sync/atomic"

	"github.com/meshfs/meshfs/pkg/cache"
)

// dataManager stores file content as fixed-size blocks in the data
// cache. Block keys run through the cache's group-aware affinity mapper,
// so consecutive blocks of a file stay on one partition per group.
type dataManager struct {
	inst  *Instance
	cache *cache.Cache

	// used tracks bytes written through this instance, checked against
	// the configured space budget.
	used atomic.Int64
}

func newDataManager(c *cache.Cache) *dataManager {
	return &dataManager{cache: c}
}

func (d *dataManager) Name() string {
	return "data"
}

func (d *dataManager) Start(inst *Instance) error {
	d.inst = inst
	return nil
}

func (d *dataManager) OnClusterReady() error {
	return nil
}

func (d *dataManager) PreStop(cancel bool) error {
	return nil
}

func (d *dataManager) Stop(cancel bool) error {
	return nil
}

// writeBlocks splits data into blocks and stores them. Returns the block
// count. Fails with ErrNoSpace without writing anything when the write
// would exceed the space budget.
func (d *dataManager) writeBlocks(path string, data []byte) (int64, error) {
	budget := d.inst.Config().MaxSpaceSize
	if budget > 0 && d.used.Load()+int64(len(data)) > budget {
		return 0, fmt.Errorf("write %q (%d bytes): %w", path, len(data), ErrNoSpace)
	}

	blockSize := d.inst.Config().BlockSize
	path = normalizePath(path)

	var blocks int64
	for off := int64(0); off < int64(len(data)); off += blockSize {
		end := off + blockSize
		if end > int64(len(data)) {
			end = int64(len(data))
		}

		key := cache.BlockKey{Path: path, Index: blocks}
		if err := d.cache.Put(key, data[off:end]); err != nil {
			return 0, fmt.Errorf("write block %d of %q: %w", blocks, path, err)
		}
		blocks++
	}

	d.used.Add(int64(len(data)))
	return blocks, nil
}

// readBlocks reassembles a file from its blocks.
func (d *dataManager) readBlocks(path string, blocks, size int64) ([]byte, error) {
	path = normalizePath(path)

	out := make([]byte, 0, size)
	for idx := int64(0); idx < blocks; idx++ {
		blk, ok, err := d.cache.Get(cache.BlockKey{Path: path, Index: idx})
		if err != nil {
			return nil, fmt.Errorf("read block %d of %q: %w", idx, path, err)
		}
		if !ok {
			return nil, fmt.Errorf("block %d of %q missing", idx, path)
		}
		out = append(out, blk...)
	}
	return out, nil
}

// deleteBlocks removes a file's blocks and returns the budget bytes.
func (d *dataManager) deleteBlocks(path string, blocks, size int64) error {
	path = normalizePath(path)

	for idx := int64(0); idx < blocks; idx++ {
		if _, err := d.cache.Delete(cache.BlockKey{Path: path, Index: idx}); err != nil {
			return fmt.Errorf("delete block %d of %q: %w", idx, path, err)
		}
	}

	d.used.Add(-size)
	return nil
}

// usedSpace returns the bytes currently accounted against the budget.
func (d *dataManager) usedSpace() int64 {
	return d.used.Load()
}
