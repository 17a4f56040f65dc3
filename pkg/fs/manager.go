package fs

// Manager is the lifecycle contract of one instance subsystem. Four
// variants exist per instance - metadata, data, server, fragmentizer -
// started in that order and stopped in reverse.
//
// All calls are made from the node's control goroutine and block until
// the phase completes or fails. Failure is signalled through the returned
// error, never by a silent no-op. Stop must be safe to call after a
// failed Start of a different manager of the same instance.
type Manager interface {
	// Name identifies the manager in logs and lifecycle errors.
	Name() string

	// Start brings the subsystem up for the given instance.
	Start(inst *Instance) error

	// OnClusterReady runs once cluster membership is established, for
	// work that needs a consistent cluster view (peer endpoints, background
	// loops that coordinate across nodes).
	OnClusterReady() error

	// PreStop begins shutdown before any manager is stopped. A graceful
	// drain (cancel=false) lets in-flight work finish; an immediate abort
	// (cancel=true) must not block on it.
	PreStop(cancel bool) error

	// Stop releases the subsystem's resources.
	Stop(cancel bool) error
}
