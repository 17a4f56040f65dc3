package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/meshfs/meshfs/pkg/fs"
	"github.com/meshfs/meshfs/pkg/fs/secondary"
)

// BuildCacheEngine creates the cache engine from configuration.
//
// Each entry under caches becomes one running cache: the storage backend
// is built from the store section, the affinity mapper from the affinity
// section, and the remaining fields map directly onto the cache
// configuration.
//
// Parameters:
//   - ctx: Context for backend initialization
//   - cfg: Node configuration
//
// Returns:
//   - *cache.Engine: Engine holding every configured cache
//   - error: Backend or configuration error
func BuildCacheEngine(ctx context.Context, cfg *Config) (*cache.Engine, error) {
	engine := cache.NewEngine()

	// Deterministic construction order; map iteration would randomize
	// backend opening and error attribution.
	names := make([]string, 0, len(cfg.Caches))
	for name := range cfg.Caches {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cc := cfg.Caches[name]

		c, err := buildCache(ctx, name, &cc)
		if err != nil {
			engine.Close()
			return nil, err
		}
		if err := engine.AddCache(c); err != nil {
			engine.Close()
			return nil, err
		}

		logger.Debug("Cache %q ready (mode=%s, store=%s)", name, cc.Mode, cc.Store.Type)
	}

	return engine, nil
}

// buildCache creates one cache from its configuration.
func buildCache(ctx context.Context, name string, cc *CacheConfig) (*cache.Cache, error) {
	store, err := createStore(ctx, name, &cc.Store)
	if err != nil {
		return nil, err
	}

	var affinity cache.AffinityMapper
	if cc.Affinity.GroupSize > 0 {
		mapper, err := cache.NewGroupBlockMapper(cc.Affinity.GroupSize)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("cache %q: %w", name, err)
		}
		affinity = mapper
	}

	c, err := cache.New(cache.Config{
		Name:            name,
		Mode:            cache.Mode(cc.Mode),
		Backups:         cc.Backups,
		IndexingEnabled: cc.IndexingEnabled,
		MemoryMode:      cache.MemoryMode(cc.MemoryMode),
		OffHeapMax:      cc.OffHeapMax,
		Partitions:      cc.Partitions,
		Affinity:        affinity,
	}, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return c, nil
}

// createStore creates a cache storage backend based on configuration.
//
// Supported types:
//   - "memory": in-process map storage, ephemeral
//   - "badger": BadgerDB storage, persistent
func createStore(ctx context.Context, cacheName string, sc *StoreConfig) (cache.Store, error) {
	switch sc.Type {
	case "memory":
		return cache.NewMemoryStore(), nil
	case "badger":
		return createBadgerStore(ctx, cacheName, sc.Badger)
	default:
		return nil, fmt.Errorf("cache %q: unknown store type %q (supported: memory, badger)", cacheName, sc.Type)
	}
}

// createBadgerStore creates a BadgerDB-backed cache store.
func createBadgerStore(ctx context.Context, cacheName string, options map[string]any) (cache.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Decode store-specific options
	type BadgerStoreOptions struct {
		Path string `mapstructure:"path"`
	}

	var storeOpts BadgerStoreOptions
	if err := mapstructure.Decode(options, &storeOpts); err != nil {
		return nil, fmt.Errorf("cache %q: failed to decode badger store options: %w", cacheName, err)
	}

	if storeOpts.Path == "" {
		return nil, fmt.Errorf("cache %q: badger store: path is required", cacheName)
	}

	return cache.NewBadgerStore(storeOpts.Path)
}

// BuildFilesystemConfigs converts the configured file system instances
// into runnable coordinator configurations, constructing secondary file
// systems where needed.
//
// Parameters:
//   - ctx: Context for secondary file system initialization
//   - cfg: Node configuration
//
// Returns:
//   - []*fs.Config: One configuration per instance, in file order
//   - error: Mode parsing or secondary construction error
func BuildFilesystemConfigs(ctx context.Context, cfg *Config) ([]*fs.Config, error) {
	out := make([]*fs.Config, 0, len(cfg.Filesystems))

	for i, fc := range cfg.Filesystems {
		defaultMode, err := fs.ParseMode(fc.DefaultMode)
		if err != nil {
			return nil, fmt.Errorf("filesystems[%d]: %w", i, err)
		}

		pathModes := make(map[string]fs.Mode, len(fc.PathModes))
		for prefix, m := range fc.PathModes {
			mode, err := fs.ParseMode(m)
			if err != nil {
				return nil, fmt.Errorf("filesystems[%d]: path %q: %w", i, prefix, err)
			}
			pathModes[prefix] = mode
		}

		sec, err := createSecondary(ctx, i, &fc.Secondary)
		if err != nil {
			return nil, err
		}

		out = append(out, &fs.Config{
			Name:                 fc.Name,
			BlockSize:            fc.BlockSize,
			GroupSize:            fc.GroupSize,
			MetaCacheName:        fc.MetaCache,
			DataCacheName:        fc.DataCache,
			DefaultMode:          defaultMode,
			PathModes:            pathModes,
			FragmentizerEnabled:  fc.Fragmentizer.Enabled,
			FragmentizerInterval: fc.Fragmentizer.Interval,
			MaxSpaceSize:         fc.MaxSpaceSize,
			EndpointAddr:         fc.EndpointAddr,
			Secondary:            sec,
		})
	}

	return out, nil
}

// createSecondary creates a secondary file system based on configuration.
//
// Supported types:
//   - "none": no secondary file system
//   - "memory": in-process object store, ephemeral (testing)
//   - "s3": Amazon S3 or compatible storage
func createSecondary(ctx context.Context, idx int, sc *SecondaryConfig) (secondary.FileSystem, error) {
	switch sc.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return secondary.NewMemory(), nil
	case "s3":
		return createS3Secondary(ctx, idx, sc.S3)
	default:
		return nil, fmt.Errorf("filesystems[%d]: unknown secondary type %q (supported: none, memory, s3)", idx, sc.Type)
	}
}

// createS3Secondary creates an S3-backed secondary file system.
func createS3Secondary(ctx context.Context, idx int, options map[string]any) (secondary.FileSystem, error) {
	// Decode the options into the config struct
	type S3SecondaryOptions struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		UsePathStyle    bool   `mapstructure:"use_path_style"`
	}

	var opts S3SecondaryOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("filesystems[%d]: failed to decode s3 secondary options: %w", idx, err)
	}

	// Path-style addressing is what MinIO and Localstack expect
	usePathStyle := opts.UsePathStyle || opts.Endpoint != ""

	sec, err := secondary.NewS3(ctx, secondary.S3Config{
		Region:          opts.Region,
		Bucket:          opts.Bucket,
		KeyPrefix:       opts.KeyPrefix,
		Endpoint:        opts.Endpoint,
		AccessKeyID:     opts.AccessKeyID,
		SecretAccessKey: opts.SecretAccessKey,
		UsePathStyle:    usePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("filesystems[%d]: %w", idx, err)
	}

	logger.Info("S3 secondary file system initialized: bucket=%s, region=%s, prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)

	return sec, nil
}
