package compiler

import (
	"fmt"

	"github.com/coregx/relin/internal/arena"
)

// BuildError reports a structural problem building or validating a Program.
type BuildError struct {
	Message string
	PC      PC
}

func (e *BuildError) Error() string {
	if e.PC >= 0 {
		return fmt.Sprintf("compiler: %s (pc %d)", e.Message, e.PC)
	}
	return fmt.Sprintf("compiler: %s", e.Message)
}

// Builder constructs a Program incrementally via fragment/patch: every Add*
// call appends one instruction and returns its PC; forward references are
// resolved later with Patch/PatchSplit once the target instruction exists.
//
// Instructions and class-table entries live in index-addressed
// internal/arena.Slabs backed by a single hard-capped Arena, the same layout
// syntax.AST uses for its node slab: a pattern whose expansion would blow
// past the arena's hard cap (deeply nested bounded repeats, e.g.
// `(?:(?:a{1,1000}){1,1000}){1,1000}`) fails Add* with an arena error
// instead of growing an unbounded Go slice to exhaustion.
type Builder struct {
	arena   *arena.Arena
	insts   *arena.Slab[Inst]
	classes *arena.Slab[[]RuneRange]
}

// NewBuilder creates an empty Builder backed by a fresh arena at the
// package's default hard cap.
func NewBuilder() *Builder {
	a := arena.New(4096, 0)
	return &Builder{
		arena:   a,
		insts:   arena.NewSlab[Inst](a),
		classes: arena.NewSlab[[]RuneRange](a),
	}
}

func (b *Builder) add(inst Inst) (PC, error) {
	idx, err := b.insts.New(inst)
	if err != nil {
		return InvalidPC, err
	}
	return PC(idx), nil
}

// AddChar adds an instruction matching a single literal rune.
func (b *Builder) AddChar(r rune, next PC) (PC, error) {
	return b.add(Inst{Op: OpChar, Rune: r, Next: next})
}

// AddClass registers ranges as a new class and adds an instruction matching
// it, continuing to next.
func (b *Builder) AddClass(ranges []RuneRange, next PC) (PC, error) {
	idx, err := b.classes.New(ranges)
	if err != nil {
		return InvalidPC, err
	}
	return b.add(Inst{Op: OpClass, ClassIdx: int(idx), Next: next})
}

// AddAny adds an instruction matching any rune (dotAll) or any rune but
// '\n' (the default '.'), continuing to next.
func (b *Builder) AddAny(dotAll bool, next PC) (PC, error) {
	if dotAll {
		return b.add(Inst{Op: OpAny, Next: next})
	}
	return b.add(Inst{Op: OpAnyNoNL, Next: next})
}

// AddSplit adds a two-way epsilon fork. x is tried before y: this ordering
// is what encodes greedy-vs-lazy and leftmost-first alternation priority in
// the executor's thread list.
func (b *Builder) AddSplit(x, y PC) (PC, error) {
	return b.add(Inst{Op: OpSplit, X: x, Y: y})
}

// AddJmp adds an unconditional epsilon transition to target.
func (b *Builder) AddJmp(target PC) (PC, error) {
	return b.add(Inst{Op: OpJmp, Next: target})
}

// AddSave adds a capture-slot recording instruction.
func (b *Builder) AddSave(slot int, next PC) (PC, error) {
	return b.add(Inst{Op: OpSave, Slot: slot, Next: next})
}

// AddAssert adds a zero-width assertion instruction.
func (b *Builder) AddAssert(anchor AnchorKind, next PC) (PC, error) {
	return b.add(Inst{Op: OpAssert, Anchor: anchor, Next: next})
}

// AddLook adds a lookahead instruction whose sub-program begins at subStart.
func (b *Builder) AddLook(negate bool, subStart, next PC) (PC, error) {
	return b.add(Inst{Op: OpLook, Negate: negate, SubStart: subStart, Next: next})
}

// AddLookMatch adds the terminal instruction of a lookahead sub-program.
func (b *Builder) AddLookMatch() (PC, error) {
	return b.add(Inst{Op: OpLookMatch})
}

// AddMatch adds the overall-accept instruction.
func (b *Builder) AddMatch() (PC, error) {
	return b.add(Inst{Op: OpMatch})
}

// Patch sets the single forward-reference target of a non-Split
// instruction at pc.
func (b *Builder) Patch(pc, target PC) error {
	if pc < 0 || int32(pc) >= b.insts.Len() {
		return &BuildError{Message: "pc out of bounds", PC: pc}
	}
	inst := b.insts.Get(int32(pc))
	switch inst.Op {
	case OpChar, OpClass, OpAny, OpAnyNoNL, OpJmp, OpSave, OpAssert, OpLook:
		inst.Next = target
		return nil
	default:
		return &BuildError{Message: fmt.Sprintf("cannot patch instruction of kind %s", inst.Op), PC: pc}
	}
}

// PatchSplit sets both forward-reference targets of a Split instruction.
func (b *Builder) PatchSplit(pc, x, y PC) error {
	if pc < 0 || int32(pc) >= b.insts.Len() {
		return &BuildError{Message: "pc out of bounds", PC: pc}
	}
	inst := b.insts.Get(int32(pc))
	if inst.Op != OpSplit {
		return &BuildError{Message: fmt.Sprintf("expected Split, got %s", inst.Op), PC: pc}
	}
	inst.X = x
	inst.Y = y
	return nil
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return int(b.insts.Len()) }

// Validate checks that the program is fully wired: every instruction that
// continues somewhere has an in-bounds successor (a dangling InvalidPC left
// over from an unpatched fragment is an error here, since the executor
// follows Next unconditionally), and every split/look target is in bounds.
func (b *Builder) Validate(start PC) error {
	n := b.insts.Len()
	if start < 0 || int32(start) >= n {
		return &BuildError{Message: "start out of bounds", PC: start}
	}
	for i, inst := range b.insts.Slice() {
		pc := PC(i)
		switch inst.Op {
		case OpChar, OpClass, OpAny, OpAnyNoNL, OpJmp, OpSave, OpAssert, OpLook:
			if inst.Next < 0 || int32(inst.Next) >= n {
				return &BuildError{Message: fmt.Sprintf("invalid next %d", inst.Next), PC: pc}
			}
		case OpSplit:
			if inst.X < 0 || int32(inst.X) >= n || inst.Y < 0 || int32(inst.Y) >= n {
				return &BuildError{Message: "invalid split target", PC: pc}
			}
		}
		if inst.Op == OpLook {
			if inst.SubStart < 0 || int32(inst.SubStart) >= n {
				return &BuildError{Message: "invalid look sub-start", PC: pc}
			}
		}
	}
	return nil
}

// Build finalizes the Program. opts configure start/anchoring/capture
// metadata.
func (b *Builder) Build(start PC, opts ...BuildOption) (*Program, error) {
	if err := b.Validate(start); err != nil {
		return nil, err
	}
	p := &Program{
		Insts:           b.insts.Slice(),
		StartAnchored:   start,
		StartUnanchored: start,
		Classes:         b.classes.Slice(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// BuildOption configures Program metadata at Build time.
type BuildOption func(*Program)

// WithAnchoredStart marks the pattern as inherently anchored.
func WithAnchoredStart(anchored bool) BuildOption {
	return func(p *Program) { p.AnchoredStart = anchored }
}

// WithCaptures sets the capture count (including group 0) and names.
func WithCaptures(numCaptures int, names []string) BuildOption {
	return func(p *Program) {
		p.NumCaptures = numCaptures
		p.CaptureNames = append([]string(nil), names...)
	}
}
