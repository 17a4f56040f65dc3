package fs

import (
	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/meshfs/meshfs/pkg/metrics"
)

// Instance bundles one validated configuration with its four subsystem
// managers and the public file-system handle built from them. Instances
// are created during node start, never rebuilt while running, and
// destroyed during node stop.
type Instance struct {
	cfg *Config

	metaCache *cache.Cache
	dataCache *cache.Cache

	meta   *metaManager
	data   *dataManager
	server *serverManager
	frag   *fragmentizerManager

	// managers holds the four managers in their fixed start order:
	// metadata, data, server, fragmentizer. Stop walks it backwards.
	managers []Manager

	fsys  *FileSystem
	coord metrics.CoordinatorMetrics
}

// newInstance resolves the configured cache pair and builds the manager
// set. The configuration must already have passed validation.
func newInstance(cfg *Config, engine *cache.Engine, coord metrics.CoordinatorMetrics) (*Instance, error) {
	metaCache, ok := engine.Cache(cfg.MetaCacheName)
	if !ok {
		return nil, configErrf(cfg.Name, "metadata cache %q is not configured locally", cfg.MetaCacheName)
	}
	dataCache, ok := engine.Cache(cfg.DataCacheName)
	if !ok {
		return nil, configErrf(cfg.Name, "data cache %q is not configured locally", cfg.DataCacheName)
	}

	inst := &Instance{
		cfg:       cfg,
		metaCache: metaCache,
		dataCache: dataCache,
		meta:      newMetaManager(metaCache),
		data:      newDataManager(dataCache),
		server:    newServerManager(),
		frag:      newFragmentizerManager(),
		coord:     coord,
	}
	inst.managers = []Manager{inst.meta, inst.data, inst.server, inst.frag}
	inst.fsys = newFileSystem(inst)

	return inst, nil
}

// Config returns the instance's immutable configuration.
func (i *Instance) Config() *Config {
	return i.cfg
}

// FileSystem returns the instance's public handle.
func (i *Instance) FileSystem() *FileSystem {
	return i.fsys
}

// Endpoints enumerates the instance's active network endpoints.
func (i *Instance) Endpoints() []Endpoint {
	return i.server.Endpoints()
}

// start brings up the managers in their fixed order. On failure the
// already-started managers are stopped in reverse before the error
// propagates, so a failed instance never leaks resources.
func (i *Instance) start() error {
	for idx, mgr := range i.managers {
		if err := mgr.Start(i); err != nil {
			for j := idx - 1; j >= 0; j-- {
				if serr := i.managers[j].Stop(true); serr != nil {
					logger.Warn("Stopping %s manager after failed start of %q: %v",
						i.managers[j].Name(), i.cfg.Name, serr)
				}
			}
			return &LifecycleError{Filesystem: i.cfg.Name, Manager: mgr.Name(), Phase: "start", Err: err}
		}
	}
	return nil
}

// onClusterReady fans the post-join hook out to the managers in start
// order.
func (i *Instance) onClusterReady() error {
	for _, mgr := range i.managers {
		if err := mgr.OnClusterReady(); err != nil {
			return &LifecycleError{Filesystem: i.cfg.Name, Manager: mgr.Name(), Phase: "cluster-ready", Err: err}
		}
	}
	return nil
}

// preStop walks the managers in reverse order, collecting errors so
// every manager gets its hook even when one fails.
func (i *Instance) preStop(cancel bool) []error {
	var errs []error
	for j := len(i.managers) - 1; j >= 0; j-- {
		if err := i.managers[j].PreStop(cancel); err != nil {
			errs = append(errs, &LifecycleError{
				Filesystem: i.cfg.Name, Manager: i.managers[j].Name(), Phase: "pre-stop", Err: err,
			})
		}
	}
	return errs
}

// stop walks the managers in reverse order and releases the public
// handle. Like preStop it collects and continues.
func (i *Instance) stop(cancel bool) []error {
	var errs []error
	for j := len(i.managers) - 1; j >= 0; j-- {
		if err := i.managers[j].Stop(cancel); err != nil {
			errs = append(errs, &LifecycleError{
				Filesystem: i.cfg.Name, Manager: i.managers[j].Name(), Phase: "stop", Err: err,
			})
		}
	}
	i.fsys.release()
	return errs
}
