// Package registry holds the mapping from kernel watch descriptor to the
// watch entry that originated it. Thread-safety is imposed by the engine
// wrapper, not this component (spec.md §4.4).
package registry

import "github.com/dpvpro/rsincron/pkg/watch"

// Descriptor is an opaque kernel watch handle. Equality is by identity;
// callers must never reuse a descriptor past the kernel's invalidation
// event for it.
type Descriptor int

// Registry maps active watch descriptors to the entry that produced them.
type Registry struct {
	entries map[Descriptor]watch.Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[Descriptor]watch.Entry)}
}

// Insert records a successful registration.
func (r *Registry) Insert(d Descriptor, e watch.Entry) {
	r.entries[d] = e
}

// Get looks up the entry for a descriptor.
func (r *Registry) Get(d Descriptor) (watch.Entry, bool) {
	e, ok := r.entries[d]
	return e, ok
}

// Remove deletes and returns the entry for a descriptor, if present.
func (r *Registry) Remove(d Descriptor) (watch.Entry, bool) {
	e, ok := r.entries[d]
	if ok {
		delete(r.entries, d)
	}
	return e, ok
}

// Clear empties the registry wholesale (used by Reload).
func (r *Registry) Clear() {
	r.entries = make(map[Descriptor]watch.Entry)
}

// Len reports the number of active registrations.
func (r *Registry) Len() int {
	return len(r.entries)
}
