package fs

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// unnamedKey stands in for the one instance a node may configure without
// a name. A random value keeps it from colliding with any real name.
var unnamedKey = uuid.NewString()

func maskName(name string) string {
	if name == "" {
		return unnamedKey
	}
	return name
}

// Registry is the concurrent name-to-instance lookup used by everything
// outside the coordinator: job submission, endpoint discovery, instance
// enumeration.
//
// Entries are inserted only while the node starts and removed only as a
// bulk clear while it stops; both happen on the node's single control
// goroutine. Lookups are safe from any goroutine and never observe a
// partially populated or partially cleared registry.
type Registry struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]*Instance)}
}

// Put registers an instance under its configured name.
func (r *Registry) Put(inst *Instance) error {
	if inst == nil {
		return fmt.Errorf("cannot register nil instance")
	}

	key := maskName(inst.Config().Name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instances[key]; exists {
		return fmt.Errorf("file system %q already registered", inst.Config().Name)
	}

	r.instances[key] = inst
	return nil
}

// Get returns the instance registered under name. The empty name resolves
// the unnamed instance. Absence is reported through the bool, not an
// error: callers routinely probe for optional instances.
func (r *Registry) Get(name string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instances[maskName(name)]
	return inst, ok
}

// All returns every registered instance, ordered by name.
func (r *Registry) All() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Config().Name < out[j].Config().Name
	})
	return out
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Clear removes every instance in one atomic step.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[string]*Instance)
}
