package fs

import "fmt"

// Mode is the access mode of a file-system instance, or of a path subtree
// when used in a path-mode override.
type Mode string

const (
	// ModePrimary serves all operations from the metadata and data caches.
	ModePrimary Mode = "PRIMARY"

	// ModeProxy delegates all operations to the secondary file system.
	ModeProxy Mode = "PROXY"

	// ModeDualSync serves from the caches and synchronously mirrors
	// writes to the secondary file system.
	ModeDualSync Mode = "DUAL_SYNC"

	// ModeDualAsync serves from the caches and asynchronously mirrors
	// writes to the secondary file system.
	ModeDualAsync Mode = "DUAL_ASYNC"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModePrimary, ModeProxy, ModeDualSync, ModeDualAsync:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown file system mode %q", s)
	}
}

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	switch m {
	case ModePrimary, ModeProxy, ModeDualSync, ModeDualAsync:
		return true
	}
	return false
}
