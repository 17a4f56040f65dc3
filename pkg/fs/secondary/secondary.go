// Package secondary defines the external file system an instance
// delegates to when its default mode or a path-mode override is PROXY
// (and, for DUAL modes, mirrors writes to). The coordinator only checks
// that a handle is present where one is required; it never inspects its
// behavior.
package secondary

import (
	"context"
	"errors"
)

// ErrNotExist is returned when a path is absent from the secondary file
// system.
var ErrNotExist = errors.New("secondary: file does not exist")

// FileSystem is an opaque handle to external storage.
type FileSystem interface {
	// Put writes the full content of a file.
	Put(ctx context.Context, path string, data []byte) error

	// Get reads the full content of a file. Returns ErrNotExist when the
	// path is absent.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes a file. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a path is present.
	Exists(ctx context.Context, path string) (bool, error)
}
