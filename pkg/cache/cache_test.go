package cache

import (
	"testing"
)

func newTestCache(t *testing.T, name string) *Cache {
	t.Helper()

	c, err := New(Config{Name: name}, NewMemoryStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_RequiresName(t *testing.T) {
	if _, err := New(Config{}, NewMemoryStore()); err == nil {
		t.Error("expected error for empty cache name")
	}
}

func TestNew_AppliesDefaults(t *testing.T) {
	c := newTestCache(t, "meta")

	cfg := c.Config()
	if cfg.Mode != ModePartitioned {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModePartitioned)
	}
	if cfg.MemoryMode != MemoryOnHeap {
		t.Errorf("MemoryMode = %q, want %q", cfg.MemoryMode, MemoryOnHeap)
	}
	if cfg.Partitions != DefaultPartitions {
		t.Errorf("Partitions = %d, want %d", cfg.Partitions, DefaultPartitions)
	}
	if cfg.Affinity == nil {
		t.Error("expected default affinity mapper")
	}
	if cfg.OffHeapMax != OffHeapDisabled {
		t.Errorf("OffHeapMax = %d, want %d (off-heap disabled for on-heap caches)", cfg.OffHeapMax, OffHeapDisabled)
	}
}

func TestNew_KeepsUnboundedOffHeapForOffHeapValues(t *testing.T) {
	c, err := New(Config{Name: "data", MemoryMode: MemoryOffHeapValues}, NewMemoryStore())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Config().OffHeapMax != OffHeapUnbounded {
		t.Errorf("OffHeapMax = %d, want %d", c.Config().OffHeapMax, OffHeapUnbounded)
	}
}

func TestCache_PutGetDelete(t *testing.T) {
	c := newTestCache(t, "data")

	key := BlockKey{Path: "/f", Index: 3}

	if err := c.Put(key, []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || string(got) != "hello" {
		t.Fatalf("Get = %q, %v; want %q, true", got, ok, "hello")
	}

	removed, err := c.Delete(key)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !removed {
		t.Fatal("Delete reported key absent")
	}

	if _, ok, _ := c.Get(key); ok {
		t.Fatal("key still present after delete")
	}
}

func TestCache_SizeTracking(t *testing.T) {
	c := newTestCache(t, "data")

	if err := c.Put("a", make([]byte, 100)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if c.Size() != 100 {
		t.Fatalf("Size = %d, want 100", c.Size())
	}

	// Overwrite replaces, it does not add.
	if err := c.Put("a", make([]byte, 40)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if c.Size() != 40 {
		t.Fatalf("Size after overwrite = %d, want 40", c.Size())
	}

	if _, err := c.Delete("a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if c.Size() != 0 {
		t.Fatalf("Size after delete = %d, want 0", c.Size())
	}
}

func TestEngine_AddAndLookup(t *testing.T) {
	e := NewEngine()

	if err := e.AddCache(newTestCache(t, "meta")); err != nil {
		t.Fatalf("AddCache: %v", err)
	}

	if _, ok := e.Cache("meta"); !ok {
		t.Error("registered cache not found")
	}
	if _, ok := e.Cache("missing"); ok {
		t.Error("lookup of unknown cache succeeded")
	}
}

func TestEngine_RejectsDuplicateName(t *testing.T) {
	e := NewEngine()

	if err := e.AddCache(newTestCache(t, "meta")); err != nil {
		t.Fatalf("AddCache: %v", err)
	}
	if err := e.AddCache(newTestCache(t, "meta")); err == nil {
		t.Error("expected error for duplicate cache name")
	}
}

func TestEngine_CloseClearsCaches(t *testing.T) {
	e := NewEngine()
	if err := e.AddCache(newTestCache(t, "meta")); err != nil {
		t.Fatalf("AddCache: %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e.Len() != 0 {
		t.Errorf("Len after Close = %d, want 0", e.Len())
	}
}
