// Package syntax parses RE2-subset pattern text into an abstract syntax
// tree and reports syntax errors with byte offsets and surrounding context.
//
// The AST is a closed tagged variant: a single Node struct carrying an Op
// tag plus the fields relevant to that tag, with children referenced by
// arena-backed index rather than pointer.
package syntax

import "github.com/coregx/relin/internal/arena"

// Op tags the kind of AST node. Closed set, dispatched by typed switch;
// no open-extension mechanism is needed or provided.
type Op uint8

const (
	OpEmpty Op = iota
	OpLiteral
	OpCharClass
	OpAnyChar
	OpAnyCharNoNL
	OpAnchor
	OpCapture
	OpRepeat
	OpConcat
	OpAlternate
	OpLook
)

func (op Op) String() string {
	switch op {
	case OpEmpty:
		return "Empty"
	case OpLiteral:
		return "Literal"
	case OpCharClass:
		return "CharClass"
	case OpAnyChar:
		return "AnyChar"
	case OpAnyCharNoNL:
		return "AnyCharNoNL"
	case OpAnchor:
		return "Anchor"
	case OpCapture:
		return "Capture"
	case OpRepeat:
		return "Repeat"
	case OpConcat:
		return "Concat"
	case OpAlternate:
		return "Alternate"
	case OpLook:
		return "Look"
	default:
		return "Unknown"
	}
}

// AnchorKind identifies a zero-width assertion.
type AnchorKind uint8

const (
	AnchorBeginLine AnchorKind = iota
	AnchorEndLine
	AnchorBeginText
	AnchorEndText
	AnchorWordBoundary
	AnchorNoWordBoundary
)

// RuneRange is an inclusive, closed range of Unicode code points.
type RuneRange struct {
	Lo, Hi rune
}

// NodeID indexes into an AST's node slab. It is never a pointer: the slab
// backing it may grow (and relocate) as the parser builds the tree, so only
// indices may be retained across allocations.
type NodeID int32

// InvalidNode is the zero value's complement; no valid node has this ID.
const InvalidNode NodeID = -1

// MaxUnbounded marks a Repeat node's Max as unbounded ({n,}).
const MaxUnbounded = -1

// Node is a single AST node. Only the fields relevant to Op are meaningful.
type Node struct {
	Op Op

	// OpLiteral
	Lit      []rune
	FoldCase bool

	// OpCharClass
	Ranges  []RuneRange
	Negated bool

	// OpAnchor
	Anchor AnchorKind

	// OpCapture
	CapIndex int
	CapName  string

	// OpRepeat
	Min, Max int
	Greedy   bool

	// OpLook
	Negate bool

	// single-child ops: Capture, Repeat, Look
	Child NodeID

	// multi-child ops: Concat, Alternate
	Children []NodeID
}

// AST is a parsed pattern: an arena-backed node slab plus the root and
// capture-group bookkeeping the compiler needs.
type AST struct {
	arena *arena.Arena
	nodes *arena.Slab[Node]
	Root  NodeID

	// NumCaptures is the number of explicit capture groups (group 0, the
	// entire match, is not counted here; compiler.Program.NumCaptures
	// adds it back).
	NumCaptures int

	// CaptureNames holds the name of capture group i at index i-1 ("" for
	// unnamed groups); length equals NumCaptures.
	CaptureNames []string
}

// Node returns a pointer to the node at id, valid until the next node
// allocation (mutate-then-discard, never hold across parser calls).
func (a *AST) Node(id NodeID) *Node {
	return a.nodes.Get(int32(id))
}

// newNode allocates a node in the AST's arena and returns its ID.
func (a *AST) newNode(n Node) (NodeID, error) {
	idx, err := a.nodes.New(n)
	if err != nil {
		return InvalidNode, err
	}
	return NodeID(idx), nil
}

// Release drops the AST's backing arena. The AST (and any NodeID into it)
// must not be used afterward.
func (a *AST) Release() {
	a.arena.Release()
}
