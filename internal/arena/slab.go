package arena

import (
	"unsafe"

	"github.com/coregx/relin/internal/conv"
)

// Slab is an index-addressed typed allocator backed by an Arena. Every New
// call appends one T and returns its int32 index; callers store and pass
// around that index, never a *T, so the underlying storage is free to grow
// (and relocate) without invalidating anything long-lived. Long-lived
// graphs (AST nodes, bytecode instructions) reference each other by Slab
// index, never by pointer.
type Slab[T any] struct {
	arena *Arena
	items []T
}

// NewSlab creates a Slab whose accounting is charged against arena: each
// appended item's size counts toward arena's hard cap, so a slab that grows
// without bound (e.g. a{1,1000000} unrolled into instructions) is
// rejected the same way an oversized raw Alloc would be.
func NewSlab[T any](arena *Arena) *Slab[T] {
	return &Slab[T]{arena: arena}
}

// New appends v and returns its index.
func (s *Slab[T]) New(v T) (int32, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	if _, err := s.arena.Alloc(size); err != nil {
		return 0, err
	}
	idx := conv.IntToInt32(len(s.items))
	s.items = append(s.items, v)
	return idx, nil
}

// Get returns a pointer to the item at idx, valid until the next New call
// that grows the backing slice (re-fetch after mutating the slab, never
// cache across a New).
func (s *Slab[T]) Get(idx int32) *T {
	return &s.items[idx]
}

// Len returns the number of items allocated in the slab.
func (s *Slab[T]) Len() int32 {
	return conv.IntToInt32(len(s.items))
}

// Slice returns the full backing slice, valid until the next New call.
func (s *Slab[T]) Slice() []T {
	return s.items
}
