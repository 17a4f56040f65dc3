package fs

import (
	"time"

	"github.com/meshfs/meshfs/pkg/fs/secondary"
)

// Default structural parameters for file-system instances.
const (
	// DefaultBlockSize is the data block size in bytes.
	DefaultBlockSize int64 = 64 * 1024

	// DefaultGroupSize is the number of consecutive blocks colocated on
	// one data-cache partition.
	DefaultGroupSize int64 = 512

	// DefaultFragmentizerInterval is the pause between background
	// defragmentation passes.
	DefaultFragmentizerInterval = 30 * time.Second

	// DefaultEndpointAddr is where an instance endpoint listens when the
	// configuration does not pin an address.
	DefaultEndpointAddr = "127.0.0.1:0"
)

// Config is the immutable configuration of one file-system instance.
// Every structural field (block size, group size, cache names, modes,
// fragmentizer flag) must be identical on every cluster node hosting an
// instance of the same name; the consistency check enforces this at join
// time.
type Config struct {
	// Name uniquely identifies the instance on this node. May be empty
	// for the single unnamed instance.
	Name string

	// BlockSize is the data block size in bytes.
	BlockSize int64

	// GroupSize is the group-affinity size: the number of consecutive
	// blocks of a file kept on one data-cache partition. The data
	// cache's affinity mapper must group by the same size.
	GroupSize int64

	// MetaCacheName names the cache holding the directory/file tree.
	MetaCacheName string

	// DataCacheName names the cache holding file content blocks.
	DataCacheName string

	// DefaultMode is the access mode for paths without an override.
	DefaultMode Mode

	// PathModes overrides the access mode per path prefix.
	PathModes map[string]Mode

	// FragmentizerEnabled turns on background defragmentation.
	FragmentizerEnabled bool

	// FragmentizerInterval is the pause between defragmentation passes.
	FragmentizerInterval time.Duration

	// MaxSpaceSize caps the bytes an instance may keep in its data
	// cache. Zero means unbounded.
	MaxSpaceSize int64

	// EndpointAddr is the TCP address of the instance's endpoint.
	EndpointAddr string

	// Secondary is the external file system PROXY and DUAL modes
	// delegate to. Required whenever any mode is not PRIMARY.
	Secondary secondary.FileSystem
}

// UsesSecondary reports whether the default mode or any path-mode
// override delegates to a secondary file system, which every mode
// except PRIMARY does.
func (c *Config) UsesSecondary() bool {
	if c.DefaultMode != ModePrimary {
		return true
	}
	for _, m := range c.PathModes {
		if m != ModePrimary {
			return true
		}
	}
	return false
}

// ModeFor resolves the access mode of a path: the longest matching
// path-mode prefix wins, otherwise the default mode applies.
func (c *Config) ModeFor(path string) Mode {
	mode := c.DefaultMode
	longest := -1

	for prefix, m := range c.PathModes {
		if len(prefix) > longest && hasPathPrefix(path, prefix) {
			mode = m
			longest = len(prefix)
		}
	}
	return mode
}

func hasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if len(path) < len(prefix) || path[:len(prefix)] != prefix {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// withDefaults returns a deep copy with grid defaults applied to unset
// fields. The copy keeps instance configurations immutable once handed
// to the processor.
func (c *Config) withDefaults() *Config {
	out := *c

	out.PathModes = make(map[string]Mode, len(c.PathModes))
	for k, v := range c.PathModes {
		out.PathModes[k] = v
	}

	if out.BlockSize == 0 {
		out.BlockSize = DefaultBlockSize
	}
	if out.GroupSize == 0 {
		out.GroupSize = DefaultGroupSize
	}
	if out.DefaultMode == "" {
		out.DefaultMode = ModePrimary
	}
	if out.FragmentizerInterval == 0 {
		out.FragmentizerInterval = DefaultFragmentizerInterval
	}
	if out.EndpointAddr == "" {
		out.EndpointAddr = DefaultEndpointAddr
	}
	return &out
}
