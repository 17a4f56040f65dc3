package fs

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/meshfs/meshfs/internal/logger"
	"github.com/meshfs/meshfs/pkg/fs/secondary"
)

// FileSystem is the public handle for one running instance. Handles stay
// valid until the owning node stops; after that every operation fails
// with ErrReleased.
//
// Each operation resolves the path's placement mode first. PRIMARY paths
// live entirely in the caches, PROXY paths pass straight through to the
// secondary file system, and the DUAL modes write locally and mirror to
// the secondary either synchronously or in the background.
type FileSystem struct {
	inst     *Instance
	released atomic.Bool
}

func newFileSystem(inst *Instance) *FileSystem {
	return &FileSystem{inst: inst}
}

// Name returns the configured file system name, empty for the unnamed
// instance.
func (f *FileSystem) Name() string {
	return f.inst.cfg.Name
}

// UsedSpace returns the bytes of file content currently held locally.
func (f *FileSystem) UsedSpace() int64 {
	return f.inst.data.usedSpace()
}

func (f *FileSystem) guard() error {
	if f.released.Load() {
		return ErrReleased
	}
	return nil
}

func (f *FileSystem) release() {
	f.released.Store(true)
}

// Create writes a file. Existing files are overwritten.
func (f *FileSystem) Create(ctx context.Context, path string, data []byte) error {
	if err := f.guard(); err != nil {
		return err
	}
	path = normalizePath(path)
	mode := f.inst.cfg.ModeFor(path)

	if mode == ModeProxy {
		return f.inst.cfg.Secondary.Put(ctx, path, data)
	}

	if err := f.inst.meta.requireParent(path); err != nil {
		return err
	}

	if prev, ok, err := f.inst.meta.lookup(path); err != nil {
		return err
	} else if ok {
		if prev.Dir {
			return fmt.Errorf("path %q is a directory", path)
		}
		if err := f.inst.data.deleteBlocks(path, prev.Blocks, prev.Size); err != nil {
			return err
		}
	}

	blocks, err := f.inst.data.writeBlocks(path, data)
	if err != nil {
		return err
	}

	entry := &Entry{Path: path, Size: int64(len(data)), Blocks: blocks, ModTime: time.Now()}
	if err := f.inst.meta.putEntry(entry); err != nil {
		return err
	}

	return f.mirror(ctx, mode, func(ctx context.Context, sec secondary.FileSystem) error {
		return sec.Put(ctx, path, data)
	})
}

// Read returns a file's full content.
func (f *FileSystem) Read(ctx context.Context, path string) ([]byte, error) {
	if err := f.guard(); err != nil {
		return nil, err
	}
	path = normalizePath(path)

	if f.inst.cfg.ModeFor(path) == ModeProxy {
		return f.inst.cfg.Secondary.Get(ctx, path)
	}

	entry, ok, err := f.inst.meta.lookup(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("read %q: %w", path, ErrNotExist)
	}
	if entry.Dir {
		return nil, fmt.Errorf("read %q: is a directory", path)
	}
	return f.inst.data.readBlocks(path, entry.Blocks, entry.Size)
}

// Mkdir creates a directory. The parent must already exist.
func (f *FileSystem) Mkdir(ctx context.Context, path string) error {
	if err := f.guard(); err != nil {
		return err
	}
	path = normalizePath(path)

	if f.inst.cfg.ModeFor(path) == ModeProxy {
		// Secondary file systems are flat object stores; directories
		// exist implicitly.
		return nil
	}
	return f.inst.meta.mkdir(path)
}

// Remove deletes a file or an empty directory.
func (f *FileSystem) Remove(ctx context.Context, path string) error {
	if err := f.guard(); err != nil {
		return err
	}
	path = normalizePath(path)
	if path == "/" {
		return fmt.Errorf("cannot remove root directory")
	}
	mode := f.inst.cfg.ModeFor(path)

	if mode == ModeProxy {
		return f.inst.cfg.Secondary.Delete(ctx, path)
	}

	entry, ok, err := f.inst.meta.lookup(path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("remove %q: %w", path, ErrNotExist)
	}

	if entry.Dir {
		children, err := f.inst.meta.list(path)
		if err != nil {
			return err
		}
		if len(children) > 0 {
			return fmt.Errorf("remove %q: directory not empty", path)
		}
	} else {
		if err := f.inst.data.deleteBlocks(path, entry.Blocks, entry.Size); err != nil {
			return err
		}
	}

	if _, err := f.inst.meta.removeEntry(path); err != nil {
		return err
	}
	if entry.Dir {
		return nil
	}

	return f.mirror(ctx, mode, func(ctx context.Context, sec secondary.FileSystem) error {
		return sec.Delete(ctx, path)
	})
}

// Stat returns the entry for path.
func (f *FileSystem) Stat(ctx context.Context, path string) (*Entry, error) {
	if err := f.guard(); err != nil {
		return nil, err
	}
	path = normalizePath(path)

	if f.inst.cfg.ModeFor(path) == ModeProxy {
		data, err := f.inst.cfg.Secondary.Get(ctx, path)
		if err != nil {
			return nil, err
		}
		return &Entry{Path: path, Size: int64(len(data))}, nil
	}

	entry, ok, err := f.inst.meta.lookup(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("stat %q: %w", path, ErrNotExist)
	}
	return entry, nil
}

// List returns the direct children of dir sorted by path.
func (f *FileSystem) List(ctx context.Context, dir string) ([]*Entry, error) {
	if err := f.guard(); err != nil {
		return nil, err
	}
	dir = normalizePath(dir)

	e, ok, err := f.inst.meta.lookup(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("list %q: %w", dir, ErrNotExist)
	}
	if !e.Dir {
		return nil, fmt.Errorf("list %q: not a directory", dir)
	}

	entries, err := f.inst.meta.list(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// mirror propagates a mutation to the secondary file system for the DUAL
// modes. DUAL_SYNC failures propagate to the caller; DUAL_ASYNC runs in
// the background and only logs.
func (f *FileSystem) mirror(ctx context.Context, mode Mode, op func(context.Context, secondary.FileSystem) error) error {
	sec := f.inst.cfg.Secondary

	switch mode {
	case ModeDualSync:
		if err := op(ctx, sec); err != nil {
			return fmt.Errorf("mirror to secondary: %w", err)
		}
		return nil

	case ModeDualAsync:
		go func() {
			if err := op(context.Background(), sec); err != nil {
				logger.Warn("Async mirror for %q failed: %v", f.inst.cfg.Name, err)
			}
		}()
		return nil

	default:
		return nil
	}
}
