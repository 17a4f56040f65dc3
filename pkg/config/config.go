package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete MeshFS node configuration.
//
// This structure captures all configurable aspects of a MeshFS node:
//   - Logging configuration
//   - Node-wide settings (daemon role, shutdown behavior)
//   - Cluster membership (listen address, seed nodes)
//   - Cache definitions (storage backend and placement parameters)
//   - File system instance definitions
//   - Metrics exposure
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (MESHFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Storage Configuration Pattern:
// Each storage backend defines its own option set. A cache's store section
// carries a type plus type-specific subsections; only the section matching
// the selected type is used. Secondary file systems follow the same
// pattern.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Node contains node-wide settings
	Node NodeConfig `mapstructure:"node"`

	// Cluster configures membership and the consistency check
	Cluster ClusterConfig `mapstructure:"cluster"`

	// Caches defines the named caches available on this node
	Caches map[string]CacheConfig `mapstructure:"caches"`

	// Filesystems defines the file system instances this node hosts
	Filesystems []FilesystemConfig `mapstructure:"filesystems" validate:"dive"`

	// Metrics controls the Prometheus metrics endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// NodeConfig contains node-wide settings.
type NodeConfig struct {
	// Daemon marks this node as a non-serving cluster member. Daemon
	// nodes host no file system instances and publish no attributes.
	Daemon bool `mapstructure:"daemon"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// ClusterConfig configures cluster membership.
//
// When ListenAddr is empty the node runs standalone: it forms a
// single-member in-process cluster and the consistency check trivially
// passes.
type ClusterConfig struct {
	// ListenAddr is the TCP address the membership exchange listens on
	ListenAddr string `mapstructure:"listen_addr"`

	// AdvertiseAddr is the address peers use to reach this node
	// Defaults to ListenAddr
	AdvertiseAddr string `mapstructure:"advertise_addr"`

	// Seeds lists addresses of existing cluster members to join through
	Seeds []string `mapstructure:"seeds"`

	// JoinTimeout bounds the seed exchange during join
	JoinTimeout time.Duration `mapstructure:"join_timeout"`

	// SkipConsistencyCheck suppresses the cluster-wide structural check.
	// Also settable through MESHFS_CLUSTER_SKIP_CONSISTENCY_CHECK.
	SkipConsistencyCheck bool `mapstructure:"skip_consistency_check"`
}

// CacheConfig defines one named cache.
type CacheConfig struct {
	// Mode is the distribution mode
	// Valid values: PARTITIONED, REPLICATED, LOCAL
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=PARTITIONED REPLICATED LOCAL"`

	// Backups is the number of backup copies for partitioned caches
	Backups int `mapstructure:"backups" validate:"gte=0"`

	// IndexingEnabled enables secondary query indexing.
	// Caches backing a file system must leave this disabled.
	IndexingEnabled bool `mapstructure:"indexing_enabled"`

	// MemoryMode selects on-heap or off-heap value storage
	// Valid values: ONHEAP, OFFHEAP_VALUES
	MemoryMode string `mapstructure:"memory_mode" validate:"omitempty,oneof=ONHEAP OFFHEAP_VALUES"`

	// OffHeapMax bounds off-heap storage in bytes.
	// -1 disables off-heap storage, 0 enables it without a bound.
	// Defaults to -1 unless memory_mode is OFFHEAP_VALUES.
	OffHeapMax int64 `mapstructure:"off_heap_max" validate:"gte=-1"`

	// Partitions is the number of logical partitions
	Partitions int `mapstructure:"partitions" validate:"gte=0"`

	// Affinity configures key placement
	Affinity AffinityConfig `mapstructure:"affinity"`

	// Store specifies the storage backend type and type-specific options
	Store StoreConfig `mapstructure:"store"`
}

// AffinityConfig configures a cache's affinity mapper.
type AffinityConfig struct {
	// GroupSize, when positive, selects the block-group mapper that
	// colocates that many consecutive file blocks per partition. Zero
	// selects the plain hash mapper.
	GroupSize int64 `mapstructure:"group_size" validate:"gte=0"`
}

// StoreConfig specifies a cache storage backend.
//
// The Type field determines which backend is used.
// Only the corresponding type-specific section is read.
type StoreConfig struct {
	// Type specifies which storage backend to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"omitempty,oneof=memory badger"`

	// Badger contains BadgerDB-specific options
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`
}

// FilesystemConfig defines one file system instance.
type FilesystemConfig struct {
	// Name identifies the instance. May be empty for the single unnamed
	// instance of a node.
	Name string `mapstructure:"name"`

	// BlockSize is the data block size in bytes
	BlockSize int64 `mapstructure:"block_size" validate:"gte=0"`

	// GroupSize is the number of consecutive blocks colocated per
	// partition. Must match the data cache's affinity group size.
	GroupSize int64 `mapstructure:"group_size" validate:"gte=0"`

	// MetaCache names the cache holding the directory tree
	MetaCache string `mapstructure:"meta_cache" validate:"required"`

	// DataCache names the cache holding content blocks
	DataCache string `mapstructure:"data_cache" validate:"required"`

	// DefaultMode is the access mode for paths without an override
	// Valid values: PRIMARY, PROXY, DUAL_SYNC, DUAL_ASYNC
	DefaultMode string `mapstructure:"default_mode" validate:"omitempty,oneof=PRIMARY PROXY DUAL_SYNC DUAL_ASYNC"`

	// PathModes overrides the access mode per path prefix
	PathModes map[string]string `mapstructure:"path_modes" validate:"dive,oneof=PRIMARY PROXY DUAL_SYNC DUAL_ASYNC"`

	// Fragmentizer configures background block reclamation
	Fragmentizer FragmentizerConfig `mapstructure:"fragmentizer"`

	// MaxSpaceSize caps the bytes of content this instance keeps locally.
	// Zero means unbounded.
	MaxSpaceSize int64 `mapstructure:"max_space_size" validate:"gte=0"`

	// EndpointAddr is the TCP address of the instance endpoint
	EndpointAddr string `mapstructure:"endpoint_addr"`

	// Secondary configures the external file system for PROXY and DUAL
	// modes
	Secondary SecondaryConfig `mapstructure:"secondary"`
}

// FragmentizerConfig configures background block reclamation.
type FragmentizerConfig struct {
	// Enabled turns the fragmentizer on
	Enabled bool `mapstructure:"enabled"`

	// Interval is the pause between reclamation passes
	Interval time.Duration `mapstructure:"interval"`
}

// SecondaryConfig specifies a secondary file system.
//
// The Type field determines which implementation is used.
// Only the corresponding type-specific section is read.
type SecondaryConfig struct {
	// Type specifies which secondary file system to use
	// Valid values: none, memory, s3
	Type string `mapstructure:"type" validate:"omitempty,oneof=none memory s3"`

	// S3 contains S3-specific options
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns metrics collection and the HTTP endpoint on
	Enabled bool `mapstructure:"enabled"`

	// ListenAddr is the address the metrics HTTP server listens on
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (MESHFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the MESHFS_ prefix and underscores.
	// Example: MESHFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("MESHFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/meshfs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// No config file is acceptable; defaults apply.
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// current directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "meshfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "meshfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}
