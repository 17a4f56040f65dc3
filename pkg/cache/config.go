// Package cache implements the partitioned cache grid that backs MeshFS
// instances. An Engine holds the node's named caches; each Cache is a
// key-value store whose keys are placed on a fixed number of logical
// partitions by an AffinityMapper. File-system data caches use the
// GroupBlockMapper so that consecutive blocks of a file stay colocated.
package cache

// Mode describes how a cache distributes its entries across the cluster.
type Mode string

const (
	// ModePartitioned splits entries across nodes by partition.
	ModePartitioned Mode = "PARTITIONED"

	// ModeReplicated keeps a full copy of every entry on every node.
	ModeReplicated Mode = "REPLICATED"

	// ModeLocal keeps entries on this node only.
	ModeLocal Mode = "LOCAL"
)

// MemoryMode describes where a cache keeps its values.
type MemoryMode string

const (
	// MemoryOnHeap stores values on the managed heap.
	MemoryOnHeap MemoryMode = "ONHEAP"

	// MemoryOffHeapValues stores values entirely off the managed heap.
	MemoryOffHeapValues MemoryMode = "OFFHEAP_VALUES"
)

// Off-heap capacity sentinels for Config.OffHeapMax.
const (
	// OffHeapDisabled disables off-heap storage for the cache.
	OffHeapDisabled int64 = -1

	// OffHeapUnbounded enables off-heap storage without a capacity bound.
	OffHeapUnbounded int64 = 0
)

// DefaultPartitions is the partition count used when a cache configuration
// does not specify one.
const DefaultPartitions = 128

// Config is the immutable configuration of one cache. File-system
// validation inspects these fields to decide whether a cache may back a
// file-system instance.
type Config struct {
	// Name uniquely identifies the cache on this node.
	Name string

	// Mode is the distribution mode. Defaults to ModePartitioned.
	Mode Mode

	// Backups is the number of backup copies kept for partitioned caches.
	Backups int

	// IndexingEnabled reports whether secondary query indexing is enabled.
	// Caches backing a file system must have it disabled.
	IndexingEnabled bool

	// MemoryMode selects on-heap or off-heap value storage.
	MemoryMode MemoryMode

	// OffHeapMax bounds off-heap storage in bytes. OffHeapDisabled turns
	// off-heap storage off; OffHeapUnbounded enables it without a bound.
	// Unset defaults to OffHeapDisabled unless the cache stores its
	// values off-heap.
	OffHeapMax int64

	// Partitions is the number of logical partitions keys map onto.
	Partitions int

	// Affinity maps keys to partitions. Defaults to a plain hash mapper.
	Affinity AffinityMapper
}

// GroupAffinity returns the cache's affinity mapper as a GroupBlockMapper
// when the cache uses block-group-aware placement.
func (c Config) GroupAffinity() (*GroupBlockMapper, bool) {
	m, ok := c.Affinity.(*GroupBlockMapper)
	return m, ok
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModePartitioned
	}
	if c.MemoryMode == "" {
		c.MemoryMode = MemoryOnHeap
	}
	// The zero value of OffHeapMax reads as "unbounded", which only
	// makes sense for caches that actually keep values off-heap.
	if c.MemoryMode != MemoryOffHeapValues && c.OffHeapMax == OffHeapUnbounded {
		c.OffHeapMax = OffHeapDisabled
	}
	if c.Partitions <= 0 {
		c.Partitions = DefaultPartitions
	}
	if c.Affinity == nil {
		c.Affinity = HashMapper{}
	}
	return c
}
