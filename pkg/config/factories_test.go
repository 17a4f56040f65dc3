package config

import (
	"context"
	"strings"
	"testing"

	"github.com/meshfs/meshfs/pkg/fs"
)

func TestBuildCacheEngine_Memory(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()

	engine, err := BuildCacheEngine(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to build cache engine: %v", err)
	}
	defer engine.Close()

	if engine.Len() != 2 {
		t.Fatalf("Expected 2 caches, got %d", engine.Len())
	}

	data, ok := engine.Cache("meshfs-data")
	if !ok {
		t.Fatal("Expected meshfs-data cache to exist")
	}
	mapper, ok := data.Config().GroupAffinity()
	if !ok {
		t.Fatal("Expected data cache to use the block-group mapper")
	}
	if mapper.GroupSize() != fs.DefaultGroupSize {
		t.Errorf("Expected group size %d, got %d", fs.DefaultGroupSize, mapper.GroupSize())
	}

	meta, ok := engine.Cache("meshfs-meta")
	if !ok {
		t.Fatal("Expected meshfs-meta cache to exist")
	}
	if _, ok := meta.Config().GroupAffinity(); ok {
		t.Error("Expected meta cache to use the plain hash mapper")
	}
}

func TestBuildCacheEngine_Badger(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Caches: map[string]CacheConfig{
		"persistent": {
			Store: StoreConfig{
				Type:   "badger",
				Badger: map[string]any{"path": t.TempDir()},
			},
		},
	}}
	ApplyDefaults(cfg)

	engine, err := BuildCacheEngine(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to build badger-backed engine: %v", err)
	}
	defer engine.Close()

	c, ok := engine.Cache("persistent")
	if !ok {
		t.Fatal("Expected persistent cache to exist")
	}
	if err := c.Put("k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, ok, err := c.Get("k")
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Get returned (%q, %v, %v)", got, ok, err)
	}
}

func TestBuildCacheEngine_BadgerRequiresPath(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Caches: map[string]CacheConfig{
		"persistent": {Store: StoreConfig{Type: "badger"}},
	}}
	ApplyDefaults(cfg)

	_, err := BuildCacheEngine(ctx, cfg)
	if err == nil {
		t.Fatal("Expected error for badger store without path")
	}
	if !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected 'path is required' error, got: %v", err)
	}
}

func TestBuildFilesystemConfigs(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Filesystems[0].DefaultMode = "DUAL_SYNC"
	cfg.Filesystems[0].PathModes = map[string]string{"/archive": "PROXY"}
	cfg.Filesystems[0].Secondary.Type = "memory"

	fsCfgs, err := BuildFilesystemConfigs(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to build file system configs: %v", err)
	}
	if len(fsCfgs) != 1 {
		t.Fatalf("Expected 1 config, got %d", len(fsCfgs))
	}

	fc := fsCfgs[0]
	if fc.DefaultMode != fs.ModeDualSync {
		t.Errorf("Expected DUAL_SYNC, got %s", fc.DefaultMode)
	}
	if fc.PathModes["/archive"] != fs.ModeProxy {
		t.Errorf("Expected /archive PROXY, got %s", fc.PathModes["/archive"])
	}
	if fc.Secondary == nil {
		t.Error("Expected a secondary file system")
	}
	if fc.MetaCacheName != "meshfs-meta" || fc.DataCacheName != "meshfs-data" {
		t.Errorf("Unexpected cache names: %q / %q", fc.MetaCacheName, fc.DataCacheName)
	}
}

func TestBuildFilesystemConfigs_NoSecondary(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()

	fsCfgs, err := BuildFilesystemConfigs(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to build file system configs: %v", err)
	}
	if fsCfgs[0].Secondary != nil {
		t.Error("Expected no secondary file system for type none")
	}
}

func TestBuildFilesystemConfigs_InvalidMode(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Filesystems[0].DefaultMode = "MIRROR"

	if _, err := BuildFilesystemConfigs(ctx, cfg); err == nil {
		t.Fatal("Expected error for unknown mode")
	}
}
