package registry

import (
	"testing"

	"github.com/dpvpro/rsincron/pkg/watch"
)

func TestRegistryInsertGetRemove(t *testing.T) {
	r := New()
	if r.Len() != 0 {
		t.Fatalf("new registry Len() = %d, want 0", r.Len())
	}

	entry := watch.Entry{Path: "/tmp"}
	r.Insert(1, entry)

	got, ok := r.Get(1)
	if !ok {
		t.Fatal("expected Get(1) to find the inserted entry")
	}
	if got.Path != "/tmp" {
		t.Errorf("got.Path = %q, want %q", got.Path, "/tmp")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	removed, ok := r.Remove(1)
	if !ok || removed.Path != "/tmp" {
		t.Errorf("Remove(1) = %+v, %v; want the inserted entry, true", removed, ok)
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", r.Len())
	}

	if _, ok := r.Get(1); ok {
		t.Error("expected Get(1) to fail after removal")
	}
}

func TestRegistryClear(t *testing.T) {
	r := New()
	r.Insert(1, watch.Entry{Path: "/a"})
	r.Insert(2, watch.Entry{Path: "/b"})
	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	if _, ok := r.Get(1); ok {
		t.Error("expected entries to be gone after Clear")
	}
}
