package config

import (
	"strings"
	"time"

	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/meshfs/meshfs/pkg/fs"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - File system structural defaults mirror the grid defaults in pkg/fs
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyNodeDefaults(&cfg.Node)
	applyClusterDefaults(&cfg.Cluster)

	if cfg.Caches == nil {
		cfg.Caches = make(map[string]CacheConfig)
	}
	for name, cc := range cfg.Caches {
		applyCacheDefaults(&cc)
		cfg.Caches[name] = cc
	}

	applyFilesystemDefaults(cfg.Filesystems)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyNodeDefaults sets node defaults.
func applyNodeDefaults(cfg *NodeConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyClusterDefaults sets cluster membership defaults.
func applyClusterDefaults(cfg *ClusterConfig) {
	if cfg.AdvertiseAddr == "" {
		cfg.AdvertiseAddr = cfg.ListenAddr
	}
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = 10 * time.Second
	}
}

// applyCacheDefaults sets cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "PARTITIONED"
	}
	if cfg.MemoryMode == "" {
		cfg.MemoryMode = "ONHEAP"
	}
	// An unset off_heap_max means disabled, not unbounded, unless the
	// cache keeps its values off-heap.
	if cfg.MemoryMode != string(cache.MemoryOffHeapValues) && cfg.OffHeapMax == cache.OffHeapUnbounded {
		cfg.OffHeapMax = cache.OffHeapDisabled
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Badger == nil {
		cfg.Store.Badger = make(map[string]any)
	}
}

// applyFilesystemDefaults sets file system instance defaults.
func applyFilesystemDefaults(fss []FilesystemConfig) {
	for i := range fss {
		fc := &fss[i]

		if fc.BlockSize == 0 {
			fc.BlockSize = fs.DefaultBlockSize
		}
		if fc.GroupSize == 0 {
			fc.GroupSize = fs.DefaultGroupSize
		}
		if fc.DefaultMode == "" {
			fc.DefaultMode = string(fs.ModePrimary)
		}
		if fc.PathModes == nil {
			fc.PathModes = make(map[string]string)
		}
		if fc.Fragmentizer.Interval == 0 {
			fc.Fragmentizer.Interval = fs.DefaultFragmentizerInterval
		}
		if fc.EndpointAddr == "" {
			fc.EndpointAddr = fs.DefaultEndpointAddr
		}
		if fc.Secondary.Type == "" {
			fc.Secondary.Type = "none"
		}
		if fc.Secondary.S3 == nil {
			fc.Secondary.S3 = make(map[string]any)
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9090"
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Caches: map[string]CacheConfig{
			"meshfs-meta": {},
			"meshfs-data": {
				Affinity: AffinityConfig{GroupSize: fs.DefaultGroupSize},
			},
		},
		Filesystems: []FilesystemConfig{
			{
				Name:      "meshfs",
				MetaCache: "meshfs-meta",
				DataCache: "meshfs-data",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
