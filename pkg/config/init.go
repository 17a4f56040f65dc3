package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// defaultConfigTemplate is written by InitConfig. It mirrors
// GetDefaultConfig so a freshly initialized node starts with one
// in-memory file system.
const defaultConfigTemplate = `# MeshFS Configuration File
#
# Environment variables with the MESHFS_ prefix override any value here,
# e.g. MESHFS_LOGGING_LEVEL=DEBUG.

logging:
  level: "INFO"
  output: "stdout"

node:
  daemon: false
  shutdown_timeout: 30s

# Leave listen_addr empty to run standalone.
cluster:
  listen_addr: ""
  seeds: []
  skip_consistency_check: false

caches:
  meshfs-meta:
    mode: "PARTITIONED"
    store:
      type: "memory"
  meshfs-data:
    mode: "PARTITIONED"
    affinity:
      group_size: 512
    store:
      type: "memory"

filesystems:
  - name: "meshfs"
    meta_cache: "meshfs-meta"
    data_cache: "meshfs-data"
    default_mode: "PRIMARY"

metrics:
  enabled: false
  listen_addr: ":9090"
`

// InitConfig writes a starter configuration file at the default
// location and returns its path. An existing file is left alone unless
// force is set.
func InitConfig(force bool) (string, error) {
	configPath := GetDefaultConfigPath()

	if _, err := os.Stat(configPath); err == nil && !force {
		return configPath, fmt.Errorf("config file already exists at %s (use force to overwrite)", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return configPath, nil
}
