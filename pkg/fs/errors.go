package fs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotExist is returned by file-system operations on absent paths.
var ErrNotExist = errors.New("path does not exist")

// ErrNoSpace is returned when a write would exceed the instance's
// configured space budget.
var ErrNoSpace = errors.New("file system space budget exhausted")

// ErrReleased is returned by operations on a file-system handle after the
// owning instance has been stopped.
var ErrReleased = errors.New("file system handle is released")

// ConfigurationError is a local validation failure. It is fatal to node
// start: no instance starts when any configured instance is invalid.
type ConfigurationError struct {
	// Filesystem is the name of the offending instance.
	Filesystem string

	// Reason describes the violated rule.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for file system %q: %s", e.Filesystem, e.Reason)
}

func configErrf(name, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Filesystem: name, Reason: fmt.Sprintf(format, args...)}
}

// LifecycleError reports a subsystem manager failing a lifecycle phase.
type LifecycleError struct {
	Filesystem string
	Manager    string
	Phase      string
	Err        error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("file system %q: %s manager %s: %v", e.Filesystem, e.Manager, e.Phase, e.Err)
}

func (e *LifecycleError) Unwrap() error {
	return e.Err
}

// ConsistencyError reports structural disagreement between this node and
// a remote node. It is fatal to cluster join unless the consistency check
// is explicitly suppressed; it is never auto-resolved.
type ConsistencyError struct {
	LocalNodeID  uuid.UUID
	RemoteNodeID uuid.UUID

	// Filesystem and RemoteFilesystem name the compared instances. They
	// are equal for field mismatches and differ for shared-cache
	// violations.
	Filesystem       string
	RemoteFilesystem string

	// Field names the first mismatched attribute, or the shared cache
	// kind ("metadata cache name" / "data cache name") for cross-instance
	// cache sharing.
	Field string

	LocalValue  string
	RemoteValue string
}

func (e *ConsistencyError) Error() string {
	if e.Filesystem != e.RemoteFilesystem {
		return fmt.Sprintf(
			"%ss must differ between file system instances (fix configuration or set "+
				"MESHFS_SKIP_CONSISTENCY_CHECK=true) [%s=%s, locNodeId=%s, rmtNodeId=%s, locFsName=%s, rmtFsName=%s]",
			e.Field, e.Field, e.LocalValue, e.LocalNodeID, e.RemoteNodeID, e.Filesystem, e.RemoteFilesystem)
	}
	return fmt.Sprintf(
		"%s must be the same on all cluster nodes for file system %q (fix configuration or set "+
			"MESHFS_SKIP_CONSISTENCY_CHECK=true) [rmtNodeId=%s, loc=%s, rmt=%s]",
		e.Field, e.Filesystem, e.RemoteNodeID, e.LocalValue, e.RemoteValue)
}
