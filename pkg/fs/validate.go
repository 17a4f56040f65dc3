package fs

import (
	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/pbnjay/memory"
)

// Validator checks file system configurations against the local cache
// engine and the node's memory limits before any instance is started.
type Validator struct {
	Engine *cache.Engine

	// MaxHeap is the byte budget assumed available for on-heap cache
	// data. Defaults to the machine's total physical memory.
	MaxHeap uint64
}

func NewValidator(engine *cache.Engine) *Validator {
	return &Validator{Engine: engine, MaxHeap: memory.TotalMemory()}
}

// Validate checks every configuration and fails fast on the first
// violation. A nil error means all instances are safe to start on this
// node.
func (v *Validator) Validate(cfgs []*Config) error {
	seen := make(map[string]struct{}, len(cfgs))

	for _, cfg := range cfgs {
		key := maskName(cfg.Name)
		if _, dup := seen[key]; dup {
			return configErrf(cfg.Name, "duplicate file system name")
		}
		seen[key] = struct{}{}

		if err := v.validateOne(cfg); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateOne(cfg *Config) error {
	dataCache, ok := v.Engine.Cache(cfg.DataCacheName)
	if !ok {
		return configErrf(cfg.Name, "data cache %q is not configured", cfg.DataCacheName)
	}
	if dataCache.Config().IndexingEnabled {
		return configErrf(cfg.Name, "data cache %q cannot have indexing enabled", cfg.DataCacheName)
	}

	metaCache, ok := v.Engine.Cache(cfg.MetaCacheName)
	if !ok {
		return configErrf(cfg.Name, "metadata cache %q is not configured", cfg.MetaCacheName)
	}
	if metaCache.Config().IndexingEnabled {
		return configErrf(cfg.Name, "metadata cache %q cannot have indexing enabled", cfg.MetaCacheName)
	}

	if cfg.MetaCacheName == cfg.DataCacheName {
		return configErrf(cfg.Name, "metadata and data caches must be different (both %q)", cfg.DataCacheName)
	}

	mapper, ok := dataCache.Config().GroupAffinity()
	if !ok {
		return configErrf(cfg.Name, "data cache %q must use a group block affinity mapper", cfg.DataCacheName)
	}
	if mapper.GroupSize() != cfg.GroupSize {
		return configErrf(cfg.Name, "data cache %q affinity group size %d does not match configured group size %d",
			cfg.DataCacheName, mapper.GroupSize(), cfg.GroupSize)
	}

	if err := v.validateBudget(cfg, dataCache.Config()); err != nil {
		return err
	}

	dataCfg := dataCache.Config()
	if dataCfg.Mode == cache.ModePartitioned && dataCfg.Backups != 0 {
		return configErrf(cfg.Name, "data cache %q cannot be used with backups (configured %d)",
			cfg.DataCacheName, dataCfg.Backups)
	}

	if cfg.UsesSecondary() && cfg.Secondary == nil {
		return configErrf(cfg.Name, "secondary file system is required for any mode other than PRIMARY")
	}

	return nil
}

// validateBudget checks the configured space budget against the memory
// actually available to the data cache. An unbounded off-heap cache can
// hold any budget, so that combination is not checked.
func (v *Validator) validateBudget(cfg *Config, dataCfg cache.Config) error {
	budget := cfg.MaxSpaceSize

	if budget == 0 && dataCfg.MemoryMode == cache.MemoryOffHeapValues {
		logger.Warn("File system %q has no space budget and keeps values off-heap; "+
			"up to 80%% of the heap may be consumed by cache data", cfg.Name)
	}
	if budget <= 0 {
		return nil
	}

	switch {
	case dataCfg.OffHeapMax < 0:
		// Off-heap disabled: the budget must fit on the heap.
		if uint64(budget) > v.MaxHeap {
			return configErrf(cfg.Name, "space budget %d exceeds available heap memory %d", budget, v.MaxHeap)
		}
	case dataCfg.OffHeapMax > 0:
		if uint64(budget) > v.MaxHeap+uint64(dataCfg.OffHeapMax) {
			return configErrf(cfg.Name, "space budget %d exceeds available heap and off-heap memory %d",
				budget, v.MaxHeap+uint64(dataCfg.OffHeapMax))
		}
	default:
		// Unbounded off-heap: any budget fits.
	}
	return nil
}
