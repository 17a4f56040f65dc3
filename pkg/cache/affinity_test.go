package cache

import (
	"testing"
)

func TestNewGroupBlockMapper_RejectsNonPositiveGroupSize(t *testing.T) {
	for _, size := range []int64{0, -1, -512} {
		if _, err := NewGroupBlockMapper(size); err == nil {
			t.Errorf("expected error for group size %d", size)
		}
	}
}

func TestGroupBlockMapper_ColocatesConsecutiveBlocks(t *testing.T) {
	const groupSize = 512
	const partitions = 128

	m, err := NewGroupBlockMapper(groupSize)
	if err != nil {
		t.Fatalf("NewGroupBlockMapper: %v", err)
	}

	// Every block of the same group must land on the same partition.
	first := m.Partition(BlockKey{Path: "/a/b", Index: 0}, partitions)
	for idx := int64(1); idx < groupSize; idx++ {
		p := m.Partition(BlockKey{Path: "/a/b", Index: idx}, partitions)
		if p != first {
			t.Fatalf("block %d mapped to partition %d, want %d", idx, p, first)
		}
	}

	// Group boundaries: block groupSize starts a new group.
	next := m.Partition(BlockKey{Path: "/a/b", Index: groupSize}, partitions)
	for idx := int64(groupSize); idx < 2*groupSize; idx++ {
		p := m.Partition(BlockKey{Path: "/a/b", Index: idx}, partitions)
		if p != next {
			t.Fatalf("block %d mapped to partition %d, want %d", idx, p, next)
		}
	}
}

func TestGroupBlockMapper_PartitionInRange(t *testing.T) {
	m, err := NewGroupBlockMapper(4)
	if err != nil {
		t.Fatalf("NewGroupBlockMapper: %v", err)
	}

	for idx := int64(0); idx < 1000; idx++ {
		p := m.Partition(BlockKey{Path: "/f", Index: idx}, 16)
		if p < 0 || p >= 16 {
			t.Fatalf("partition %d out of range for block %d", p, idx)
		}
	}
}

func TestGroupBlockMapper_GroupSize(t *testing.T) {
	m, err := NewGroupBlockMapper(256)
	if err != nil {
		t.Fatalf("NewGroupBlockMapper: %v", err)
	}
	if m.GroupSize() != 256 {
		t.Errorf("GroupSize() = %d, want 256", m.GroupSize())
	}
}

func TestHashMapper_Deterministic(t *testing.T) {
	m := HashMapper{}

	p1 := m.Partition("some-key", 64)
	p2 := m.Partition("some-key", 64)
	if p1 != p2 {
		t.Errorf("same key mapped to different partitions: %d vs %d", p1, p2)
	}
	if p1 < 0 || p1 >= 64 {
		t.Errorf("partition %d out of range", p1)
	}
}
