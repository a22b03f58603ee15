// Package compiler turns a parsed pattern (syntax.AST) into a Thompson-
// construction bytecode Program: a flat, rune-oriented instruction list the
// pike package executes with a simultaneous-state (PikeVM) simulation.
//
// The Program operates on decoded runes directly, one transition per rune,
// rather than expanding every character class into byte-range automaton
// states; the executor does the UTF-8 decoding.
package compiler

import "fmt"

// Op tags the kind of a single bytecode instruction. Closed set, dispatched
// by typed switch in the executor.
type Op uint8

const (
	// OpChar matches a single literal rune (held in Rune).
	OpChar Op = iota
	// OpClass matches any rune in Classes[ClassIdx] (sorted, non-overlapping ranges).
	OpClass
	// OpAny matches any rune, including '\n'.
	OpAny
	// OpAnyNoNL matches any rune except '\n'.
	OpAnyNoNL
	// OpSplit forks into two threads, X then Y, in priority order (X first).
	OpSplit
	// OpJmp is an unconditional epsilon transition to Next.
	OpJmp
	// OpSave records the current input offset into capture slot Slot, then
	// continues to Next.
	OpSave
	// OpAssert succeeds (as a zero-width transition to Next) only if the
	// zero-width condition AnchorKind holds at the current position.
	OpAssert
	// OpLook runs the nested sub-program starting at SubStart as a bounded
	// lookahead probe from the current position (consuming no input from
	// the outer thread's perspective). If the sub-program reaches
	// OpLookMatch, the assertion succeeds (or fails, if Negate) and control
	// continues to Next.
	OpLook
	// OpLookMatch terminates a lookahead sub-program; it is never reached
	// by the outer search directly.
	OpLookMatch
	// OpMatch accepts the overall pattern.
	OpMatch
)

func (op Op) String() string {
	switch op {
	case OpChar:
		return "Char"
	case OpClass:
		return "Class"
	case OpAny:
		return "Any"
	case OpAnyNoNL:
		return "AnyNoNL"
	case OpSplit:
		return "Split"
	case OpJmp:
		return "Jmp"
	case OpSave:
		return "Save"
	case OpAssert:
		return "Assert"
	case OpLook:
		return "Look"
	case OpLookMatch:
		return "LookMatch"
	case OpMatch:
		return "Match"
	default:
		return fmt.Sprintf("Op(%d)", op)
	}
}

// AnchorKind mirrors syntax.AnchorKind; duplicated here so the compiler
// package does not need its assertion semantics to follow syntax's AST
// representation at runtime.
type AnchorKind uint8

const (
	AnchorBeginLine AnchorKind = iota
	AnchorEndLine
	AnchorBeginText
	AnchorEndText
	AnchorWordBoundary
	AnchorNoWordBoundary
)

// PC is an instruction index into a Program. Like syntax.NodeID, it is
// always an index, never a pointer: the Builder's instruction slab grows
// (and may relocate) during construction, and relocation never invalidates
// a PC.
type PC int32

// InvalidPC marks an unset target.
const InvalidPC PC = -1

// Inst is a single bytecode instruction. Only the fields relevant to Op are
// meaningful, the same closed tagged-variant shape as syntax.Node.
type Inst struct {
	Op Op

	// OpChar
	Rune rune

	// OpClass
	ClassIdx int

	// OpSplit
	X, Y PC

	// OpJmp, OpSave(Next), OpAssert(Next), OpLook(Next), OpAny(Next), OpAnyNoNL(Next)
	Next PC

	// OpSave
	Slot int

	// OpAssert
	Anchor AnchorKind

	// OpLook
	SubStart PC
	Negate   bool
}

// RuneRange is an inclusive rune range, duplicated from syntax.RuneRange so
// compiler does not need to import syntax's AST types into its public
// bytecode surface.
type RuneRange struct {
	Lo, Hi rune
}

// Program is the finished bytecode for one pattern.
type Program struct {
	Insts []Inst

	// StartAnchored is the entry PC for a search required to begin at the
	// caller's start offset.
	StartAnchored PC

	// StartUnanchored is the entry PC for an unanchored search: a
	// thread-per-start-offset prefix is realized by the executor re-seeding
	// a fresh thread at StartAnchored every position rather than compiling
	// an explicit ".*?" prefix, so StartUnanchored always equals
	// StartAnchored; the field is kept distinct for readability at call
	// sites and in case that changes.
	StartUnanchored PC

	// Classes holds the rune-range sets OpClass instructions index into.
	Classes [][]RuneRange

	// NumCaptures is the number of capture slots, counting group 0 (the
	// whole match): a pattern with N explicit groups has NumCaptures == N+1.
	NumCaptures int

	// CaptureNames holds group names, index 0 being "" for the whole match.
	CaptureNames []string

	// AnchoredStart is true when the pattern can only ever match starting
	// at the search's start offset (e.g. "^foo", or Flags.Anchored was set
	// at compile time).
	AnchoredStart bool
}

func (p *Program) String() string {
	return fmt.Sprintf("Program{insts: %d, captures: %d, anchored: %v}",
		len(p.Insts), p.NumCaptures, p.AnchoredStart)
}
