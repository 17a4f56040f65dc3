package fs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/pkg/cache"
	"github.com/meshfs/meshfs/pkg/cluster"
	"github.com/meshfs/meshfs/pkg/metrics"
)

// SkipConsistencyCheckEnv suppresses the cluster-wide structural check
// when set to a true value. Meant for recovery from a mixed-configuration
// deadlock, not for regular operation.
const SkipConsistencyCheckEnv = "MESHFS_SKIP_CONSISTENCY_CHECK"

// State is the processor lifecycle state.
type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
)

// Options tunes processor behavior beyond the instance configurations.
type Options struct {
	// Daemon marks this node as a non-serving cluster member. Daemon
	// nodes publish no file system attributes and are skipped by peers'
	// consistency checks.
	Daemon bool

	// SkipConsistencyCheck suppresses the structural agreement check at
	// cluster-ready time. The SkipConsistencyCheckEnv variable has the
	// same effect.
	SkipConsistencyCheck bool

	// MaxHeap overrides the heap budget used by local validation. Zero
	// means use the machine's physical memory.
	MaxHeap uint64
}

// Processor is the per-node file system coordinator. It validates the
// configured instances, publishes their structural attributes before the
// node joins the cluster, starts the instances, gates them on
// cluster-wide agreement, and tears everything down in reverse on stop.
//
// The lifecycle is driven from the node's control flow in this order:
// PublishAttributes, Start, membership join, OnClusterReady, and
// eventually Stop. PublishAttributes must run before the join so peers
// see the attributes in the join exchange.
type Processor struct {
	opts       Options
	cfgs       []*Config
	engine     *cache.Engine
	membership cluster.Membership
	coord      metrics.CoordinatorMetrics

	reg   *Registry
	attrs []Attributes

	mu    sync.Mutex
	state State
}

// NewProcessor builds a processor for cfgs. Defaults are applied to each
// configuration; the originals are not modified.
func NewProcessor(cfgs []*Config, engine *cache.Engine, membership cluster.Membership, opts Options) *Processor {
	withDefaults := make([]*Config, len(cfgs))
	for i, cfg := range cfgs {
		withDefaults[i] = cfg.withDefaults()
	}

	return &Processor{
		opts:       opts,
		cfgs:       withDefaults,
		engine:     engine,
		membership: membership,
		coord:      metrics.NewCoordinatorMetrics(),
		reg:        NewRegistry(),
		state:      StateStopped,
	}
}

// State returns the current lifecycle state.
func (p *Processor) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PublishAttributes attaches the structural attributes of this node's
// instances to the local cluster node. Must be called before the node
// joins the cluster. Daemon nodes publish nothing.
func (p *Processor) PublishAttributes() error {
	attrs := PublishedAttributes(p.cfgs, p.engine, p.opts.Daemon)
	if err := AttachAttributes(p.membership, attrs); err != nil {
		return err
	}
	p.attrs = attrs
	return nil
}

// Start validates every configuration and brings up the instances. It is
// all-or-nothing: one invalid configuration or one failed manager start
// leaves no instance running.
func (p *Processor) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStopped {
		return fmt.Errorf("cannot start processor in state %s", p.state)
	}
	p.state = StateStarting

	if err := p.startLocked(); err != nil {
		p.stopLocked(true)
		p.state = StateStopped
		return err
	}
	return nil
}

func (p *Processor) startLocked() error {
	validator := NewValidator(p.engine)
	if p.opts.MaxHeap > 0 {
		validator.MaxHeap = p.opts.MaxHeap
	}
	if err := validator.Validate(p.cfgs); err != nil {
		p.coord.ValidationFailed()
		return err
	}

	for _, cfg := range p.cfgs {
		inst, err := newInstance(cfg, p.engine, p.coord)
		if err != nil {
			return err
		}

		// An instance becomes visible through the registry only once all
		// of its managers are up; a failed start leaves nothing behind
		// for concurrent lookups to find.
		if err := inst.start(); err != nil {
			return err
		}
		if err := p.reg.Put(inst); err != nil {
			for _, serr := range append(inst.preStop(true), inst.stop(true)...) {
				logger.Warn("Stopping unregistered file system %q: %v", cfg.Name, serr)
			}
			return err
		}

		p.coord.InstanceStarted(cfg.Name)
		logger.Info("File system %q started (block size %d, group size %d, mode %s)",
			cfg.Name, cfg.BlockSize, cfg.GroupSize, cfg.DefaultMode)
	}
	return nil
}

// OnClusterReady runs once the node has joined the cluster: it verifies
// structural agreement with every remote node and then releases the
// instances to serve traffic. A consistency failure leaves the processor
// in STARTING; the caller is expected to Stop it.
func (p *Processor) OnClusterReady() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateStarting {
		return fmt.Errorf("cannot complete cluster join in state %s", p.state)
	}

	if p.skipConsistencyCheck() {
		logger.Warn("File system configuration consistency check is disabled")
	} else {
		localID := p.membership.LocalNode().ID
		if err := CheckConsistency(localID, p.attrs, p.membership.RemoteNodes()); err != nil {
			p.coord.ConsistencyCheckFailed()
			return err
		}
	}

	for _, inst := range p.reg.All() {
		if err := inst.onClusterReady(); err != nil {
			return err
		}
	}

	p.state = StateRunning
	return nil
}

func (p *Processor) skipConsistencyCheck() bool {
	if p.opts.SkipConsistencyCheck {
		return true
	}
	if v := os.Getenv(SkipConsistencyCheckEnv); v != "" {
		skip, err := strconv.ParseBool(v)
		return err == nil && skip
	}
	return false
}

// Stop tears down every instance. With cancel set, in-flight work is
// aborted; otherwise instances drain first. Stop collects errors instead
// of failing fast so every instance gets its shutdown, and it is
// idempotent.
func (p *Processor) Stop(cancel bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateStopped {
		return nil
	}
	p.state = StateStopping

	err := p.stopLocked(cancel)
	p.state = StateStopped
	return err
}

func (p *Processor) stopLocked(cancel bool) error {
	instances := p.reg.All()

	var errs []error
	for i := len(instances) - 1; i >= 0; i-- {
		errs = append(errs, instances[i].preStop(cancel)...)
	}
	for i := len(instances) - 1; i >= 0; i-- {
		inst := instances[i]
		errs = append(errs, inst.stop(cancel)...)
		p.coord.InstanceStopped(inst.Config().Name)
		logger.Info("File system %q stopped", inst.Config().Name)
	}

	p.reg.Clear()
	return errors.Join(errs...)
}

// FileSystem returns the handle of the named instance. The empty name
// resolves the unnamed instance.
func (p *Processor) FileSystem(name string) (*FileSystem, bool) {
	inst, ok := p.reg.Get(name)
	if !ok {
		return nil, false
	}
	return inst.FileSystem(), true
}

// FileSystems enumerates every running instance's handle, ordered by
// name.
func (p *Processor) FileSystems() []*FileSystem {
	instances := p.reg.All()

	out := make([]*FileSystem, len(instances))
	for i, inst := range instances {
		out[i] = inst.FileSystem()
	}
	return out
}

// Endpoints returns the active endpoints of the named instance. Unknown
// names yield an empty slice.
func (p *Processor) Endpoints(name string) []Endpoint {
	inst, ok := p.reg.Get(name)
	if !ok {
		return []Endpoint{}
	}
	eps := inst.Endpoints()
	if eps == nil {
		return []Endpoint{}
	}
	return eps
}
