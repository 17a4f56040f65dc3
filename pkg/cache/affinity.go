package cache

import (
	"fmt"
	"hash/fnv"
)

// AffinityMapper decides which logical partition a key lives on.
//
// Every node that hosts a cache with the same name must use an equivalent
// mapper, otherwise nodes disagree on key placement. For file-system data
// caches the mapper must additionally be block-group aware (see
// GroupBlockMapper); local validation enforces this before an instance is
// allowed to start.
type AffinityMapper interface {
	// Partition returns the partition for key, in [0, partitions).
	Partition(key any, partitions int) int
}

// BlockKey identifies one fixed-size block of a file's content inside a
// data cache.
type BlockKey struct {
	// Path is the file path the block belongs to.
	Path string

	// Index is the zero-based block index within the file.
	Index int64
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s#%d", k.Path, k.Index)
}

// HashMapper is the default affinity mapper: a plain hash of the key's
// string form. It has no notion of block grouping.
type HashMapper struct{}

func (HashMapper) Partition(key any, partitions int) int {
	if partitions <= 0 {
		return 0
	}
	return int(hashKey(keyString(key)) % uint64(partitions))
}

// GroupBlockMapper colocates groups of consecutive file blocks on one
// partition. Blocks [0, groupSize) of a file map to the same partition,
// blocks [groupSize, 2*groupSize) to the next group's partition, and so
// on. Sequential reads and writes therefore touch one partition per group
// instead of scattering every block.
//
// Non-block keys fall back to plain hashing.
type GroupBlockMapper struct {
	groupSize int64
}

// NewGroupBlockMapper creates a mapper that groups groupSize consecutive
// blocks per partition. groupSize must be positive.
func NewGroupBlockMapper(groupSize int64) (*GroupBlockMapper, error) {
	if groupSize <= 0 {
		return nil, fmt.Errorf("group size must be positive, got %d", groupSize)
	}
	return &GroupBlockMapper{groupSize: groupSize}, nil
}

// GroupSize returns the number of consecutive blocks placed together.
func (m *GroupBlockMapper) GroupSize() int64 {
	return m.groupSize
}

func (m *GroupBlockMapper) Partition(key any, partitions int) int {
	if partitions <= 0 {
		return 0
	}

	bk, ok := key.(BlockKey)
	if !ok {
		return int(hashKey(keyString(key)) % uint64(partitions))
	}

	group := bk.Index / m.groupSize
	h := fnv.New64a()
	h.Write([]byte(bk.Path))
	fmt.Fprintf(h, "#%d", group)

	return int(h.Sum64() % uint64(partitions))
}

func hashKey(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// keyString is the canonical string form of a cache key, used both for
// store addressing and for default hashing.
func keyString(key any) string {
	switch k := key.(type) {
	case string:
		return k
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", k)
	}
}
