package pike

// cowCaptures implements copy-on-write capture-slot vectors: splitting a
// thread at a Split instruction is the hottest path in the simulation, and
// letting both branches share one backing array until either actually
// writes a slot keeps that split allocation-free in the common case.
type cowCaptures struct {
	shared *sharedCaptures
}

type sharedCaptures struct {
	data []int
	refs int
}

// clone returns a reference to the same backing data with the ref count
// bumped; no copy happens until a write occurs.
func (c cowCaptures) clone() cowCaptures {
	if c.shared == nil {
		return cowCaptures{}
	}
	c.shared.refs++
	return cowCaptures{shared: c.shared}
}

// update writes slot, copying the backing array first if it's shared.
func (c cowCaptures) update(slot, value int) cowCaptures {
	if c.shared == nil || slot < 0 || slot >= len(c.shared.data) {
		return c
	}
	if c.shared.refs > 1 {
		c.shared.refs--
		data := make([]int, len(c.shared.data))
		copy(data, c.shared.data)
		data[slot] = value
		return cowCaptures{shared: &sharedCaptures{data: data, refs: 1}}
	}
	c.shared.data[slot] = value
	return c
}

// copyData returns an independent copy of the capture slots, safe to keep
// after the thread that produced it is discarded.
func (c cowCaptures) copyData() []int {
	if c.shared == nil {
		return nil
	}
	dst := make([]int, len(c.shared.data))
	copy(dst, c.shared.data)
	return dst
}
