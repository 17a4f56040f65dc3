package fs

import (
	"encoding/json"
	"fmt"
	gopath "path"
	"strings"
	"time"

	"github.com/meshfs/meshfs/pkg/cache"
)

// entryKeyPrefix namespaces tree entries inside the metadata cache.
const entryKeyPrefix = "entry:"

// Entry is one node of the directory/file tree kept in the metadata
// cache.
type Entry struct {
	Path    string    `json:"path"`
	Dir     bool      `json:"dir"`
	Size    int64     `json:"size"`
	Blocks  int64     `json:"blocks"`
	ModTime time.Time `json:"mod_time"`
}

// metaManager owns the directory/file tree of one instance. It starts
// before the data manager because data operations resolve parent
// directories through the tree.
type metaManager struct {
	inst  *Instance
	cache *cache.Cache
}

func newMetaManager(c *cache.Cache) *metaManager {
	return &metaManager{cache: c}
}

func (m *metaManager) Name() string {
	return "metadata"
}

func (m *metaManager) Start(inst *Instance) error {
	m.inst = inst

	// The root directory always exists.
	_, ok, err := m.lookup("/")
	if err != nil {
		return fmt.Errorf("read root entry: %w", err)
	}
	if !ok {
		if err := m.putEntry(&Entry{Path: "/", Dir: true, ModTime: time.Now()}); err != nil {
			return fmt.Errorf("create root entry: %w", err)
		}
	}
	return nil
}

func (m *metaManager) OnClusterReady() error {
	return nil
}

func (m *metaManager) PreStop(cancel bool) error {
	return nil
}

func (m *metaManager) Stop(cancel bool) error {
	// The cache engine owns the backing store; nothing to release here.
	return nil
}

func (m *metaManager) lookup(path string) (*Entry, bool, error) {
	raw, ok, err := m.cache.Get(entryKeyPrefix + normalizePath(path))
	if err != nil || !ok {
		return nil, false, err
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, fmt.Errorf("decode entry %q: %w", path, err)
	}
	return &e, true, nil
}

func (m *metaManager) putEntry(e *Entry) error {
	e.Path = normalizePath(e.Path)

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry %q: %w", e.Path, err)
	}
	return m.cache.Put(entryKeyPrefix+e.Path, raw)
}

func (m *metaManager) removeEntry(path string) (bool, error) {
	return m.cache.Delete(entryKeyPrefix + normalizePath(path))
}

// requireParent fails unless the parent of path exists and is a
// directory.
func (m *metaManager) requireParent(path string) error {
	parent := gopath.Dir(normalizePath(path))

	e, ok, err := m.lookup(parent)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("parent %q: %w", parent, ErrNotExist)
	}
	if !e.Dir {
		return fmt.Errorf("parent %q is not a directory", parent)
	}
	return nil
}

func (m *metaManager) mkdir(path string) error {
	path = normalizePath(path)
	if path == "/" {
		return nil
	}

	if _, ok, err := m.lookup(path); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("path %q already exists", path)
	}

	if err := m.requireParent(path); err != nil {
		return err
	}
	return m.putEntry(&Entry{Path: path, Dir: true, ModTime: time.Now()})
}

// list returns the direct children of dir.
func (m *metaManager) list(dir string) ([]*Entry, error) {
	dir = normalizePath(dir)

	var out []*Entry
	err := m.cache.ForEach(func(key string, value []byte) error {
		if !strings.HasPrefix(key, entryKeyPrefix) {
			return nil
		}

		p := strings.TrimPrefix(key, entryKeyPrefix)
		if p == dir || gopath.Dir(p) != dir {
			return nil
		}

		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			return fmt.Errorf("decode entry %q: %w", p, err)
		}
		out = append(out, &e)
		return nil
	})
	return out, err
}

func normalizePath(p string) string {
	p = gopath.Clean("/" + p)
	return p
}
