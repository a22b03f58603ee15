// Package sparse provides a sparse set data structure for efficient membership testing.
//
// A sparse set is a data structure that supports O(1) insertion, deletion, and membership
// testing while maintaining a dense list of elements. It backs the PikeVM executor's
// per-position "seen" set: clearing it once per input position and checking Contains
// before scheduling a thread at a given pc is what bounds the simulation to at most one
// thread per (pc, position) pair, the linearity invariant the executor depends on.
package sparse

// defaultCapacity is used when a capacity of 0 is requested.
const defaultCapacity = 64

// SparseSet is a set of uint32 values that supports O(1) operations.
// It maintains both a sparse array (for membership testing) and a dense array
// (for iteration). The sparse array maps values to indices in the dense array.
//
// This implementation is optimized for cases where the universe of possible
// values is known and relatively small (e.g., NFA state IDs).
type SparseSet struct {
	sparse []uint32 // Maps value -> index in dense
	dense  []uint32 // Contains the actual values
	size   uint32   // Current number of elements
}

// NewSparseSet creates a new sparse set with the given capacity.
// The capacity represents the maximum value that can be stored (exclusive).
// A capacity of 0 uses a small default.
func NewSparseSet(capacity uint32) *SparseSet {
	if capacity == 0 {
		capacity = defaultCapacity
	}
	return &SparseSet{
		sparse: make([]uint32, capacity),
		dense:  make([]uint32, 0, capacity),
		size:   0,
	}
}

// Insert adds a value to the set, reporting whether it was newly added.
// Panics if value >= capacity.
func (s *SparseSet) Insert(value uint32) bool {
	if s.Contains(value) {
		return false
	}

	// Add to dense array
	s.dense = append(s.dense, value)
	// Map value to its index in dense
	s.sparse[value] = s.size
	s.size++
	return true
}

// Contains returns true if the value is in the set
func (s *SparseSet) Contains(value uint32) bool {
	// Bounds check: value must be within sparse array bounds
	// Check for potential overflow when converting len to uint32
	if len(s.sparse) > 0x7FFFFFFF {
		return false // len too large for safe conversion
	}
	//nolint:gosec // G115: len is checked above for safe conversion to uint32
	sparseLen := uint32(len(s.sparse))
	if value >= sparseLen {
		return false
	}
	idx := s.sparse[value]
	return idx < s.size && s.dense[idx] == value
}

// Remove removes a value from the set.
// If the value is not present, this is a no-op.
func (s *SparseSet) Remove(value uint32) {
	if !s.Contains(value) {
		return
	}

	// Get index of value in dense array
	idx := s.sparse[value]

	// Move last element to this position (swap and pop)
	lastValue := s.dense[s.size-1]
	s.dense[idx] = lastValue
	s.sparse[lastValue] = idx

	s.size--
	s.dense = s.dense[:s.size]
}

// Clear removes all elements from the set in O(1) time
func (s *SparseSet) Clear() {
	s.size = 0
	s.dense = s.dense[:0]
}

// Len returns the number of elements in the set
func (s *SparseSet) Len() int {
	return int(s.size)
}

// Size is an alias for Len.
func (s *SparseSet) Size() int {
	return s.Len()
}

// IsEmpty returns true if the set contains no elements
func (s *SparseSet) IsEmpty() bool {
	return s.size == 0
}

// Capacity returns the maximum value the set can store (exclusive).
func (s *SparseSet) Capacity() int {
	return len(s.sparse)
}

// Resize grows the set's capacity, preserving the current elements.
// Resizing to the same or a smaller capacity does not shrink the backing
// arrays; it only clears the set. A capacity of 0 uses the default.
func (s *SparseSet) Resize(capacity uint32) {
	if capacity == 0 {
		capacity = defaultCapacity
	}
	if int(capacity) > len(s.sparse) {
		next := make([]uint32, capacity)
		copy(next, s.sparse)
		s.sparse = next
		return
	}
	s.Clear()
}

// Clone returns an independent copy of the set.
func (s *SparseSet) Clone() *SparseSet {
	c := &SparseSet{
		sparse: make([]uint32, len(s.sparse)),
		dense:  make([]uint32, len(s.dense), cap(s.dense)),
		size:   s.size,
	}
	copy(c.sparse, s.sparse)
	copy(c.dense, s.dense)
	return c
}

// MemoryUsage returns the approximate number of bytes the set's backing
// arrays occupy.
func (s *SparseSet) MemoryUsage() int {
	return len(s.sparse)*4 + cap(s.dense)*4
}

// Values returns a slice of all values in the set.
// The returned slice is valid until the next mutation.
func (s *SparseSet) Values() []uint32 {
	return s.dense[:s.size]
}

// Iter calls the given function for each value in the set.
// The iteration order is unspecified.
func (s *SparseSet) Iter(f func(uint32)) {
	for i := uint32(0); i < s.size; i++ {
		f(s.dense[i])
	}
}

// SparseSets is a pair of sparse sets sized together, for callers that need
// two same-universe seen sets side by side (e.g. an executor's main search
// set and its lookahead probe set).
type SparseSets struct {
	Set1 *SparseSet
	Set2 *SparseSet
}

// NewSparseSets creates a pair of sparse sets with the given shared capacity.
func NewSparseSets(capacity uint32) *SparseSets {
	return &SparseSets{
		Set1: NewSparseSet(capacity),
		Set2: NewSparseSet(capacity),
	}
}

// Swap exchanges the two sets.
func (ss *SparseSets) Swap() {
	ss.Set1, ss.Set2 = ss.Set2, ss.Set1
}

// Clear empties both sets.
func (ss *SparseSets) Clear() {
	ss.Set1.Clear()
	ss.Set2.Clear()
}

// Resize resizes both sets, with the same grow-preserves / shrink-clears
// behavior as SparseSet.Resize.
func (ss *SparseSets) Resize(capacity uint32) {
	ss.Set1.Resize(capacity)
	ss.Set2.Resize(capacity)
}

// MemoryUsage returns the combined memory footprint of both sets.
func (ss *SparseSets) MemoryUsage() int {
	return ss.Set1.MemoryUsage() + ss.Set2.MemoryUsage()
}
