package secondary

import (
	"context"
	"errors"
	"testing"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.Put(ctx, "/a/b.txt", []byte("content")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	data, err := m.Get(ctx, "/a/b.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("Get = %q, want %q", data, "content")
	}

	ok, err := m.Exists(ctx, "/a/b.txt")
	if err != nil || !ok {
		t.Fatalf("Exists = %v, %v; want true, nil", ok, err)
	}

	if err := m.Delete(ctx, "/a/b.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Get(ctx, "/a/b.txt"); !errors.Is(err, ErrNotExist) {
		t.Fatalf("Get after delete: %v, want ErrNotExist", err)
	}
}

func TestMemory_DeleteAbsentIsNoError(t *testing.T) {
	if err := NewMemory().Delete(context.Background(), "/missing"); err != nil {
		t.Fatalf("Delete absent path: %v", err)
	}
}
