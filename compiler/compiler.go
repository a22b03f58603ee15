package compiler

import (
	"fmt"

	"github.com/coregx/relin/syntax"
)

// maxCompileDepth bounds compileNode recursion on deeply nested trees.
const maxCompileDepth = 1000

// Config controls executor-facing compile-time decisions that the AST alone
// doesn't carry.
type Config struct {
	// Anchored sets Program.AnchoredStart, so a search only tries the
	// caller's start offset instead of scanning every start offset.
	Anchored bool
}

// Compiler lowers a syntax.AST into a Program via fragment/patch: every
// compileNode call returns a (start, end PC) pair for a dangling fragment,
// and the caller patches end into whatever follows.
type Compiler struct {
	config  Config
	builder *Builder
	ast     *syntax.AST
	depth   int
}

// NewCompiler creates a Compiler with the given configuration.
func NewCompiler(config Config) *Compiler {
	return &Compiler{config: config}
}

// CompileError reports a compile-time failure: recursion too deep, the
// arena backing the bytecode exhausted its hard cap, or an internal builder
// inconsistency. Parser-level syntax errors never reach here: they're
// returned by syntax.Parse before a Compiler is invoked.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return fmt.Sprintf("compiler: %v", e.Err) }
func (e *CompileError) Unwrap() error { return e.Err }

var errTooComplex = fmt.Errorf("pattern too complex (recursion limit or arena cap exceeded)")

// tooComplex wraps any arena-exhaustion error from a Builder.Add* call as a
// CompileError over the shared errTooComplex sentinel, the same bucket a
// recursion-depth overflow reports.
func tooComplex(err error) error {
	if err == nil {
		return nil
	}
	return &CompileError{Err: errTooComplex}
}

// Compile lowers ast into a Program.
func (c *Compiler) Compile(ast *syntax.AST) (*Program, error) {
	c.builder = NewBuilder()
	c.ast = ast
	c.depth = 0

	bodyStart, bodyEnd, err := c.compileNode(ast.Root)
	if err != nil {
		return nil, err
	}

	// Wrap the whole pattern in capture slots 0/1 so group 0 (the entire
	// match) is recorded like any other group.
	openSlot0, err := c.builder.AddSave(0, bodyStart)
	if err != nil {
		return nil, tooComplex(err)
	}
	closeSlot0, err := c.builder.AddSave(1, InvalidPC)
	if err != nil {
		return nil, tooComplex(err)
	}
	if err := c.patch(bodyEnd, closeSlot0); err != nil {
		return nil, err
	}

	matchPC, err := c.builder.AddMatch()
	if err != nil {
		return nil, tooComplex(err)
	}
	if err := c.builder.Patch(closeSlot0, matchPC); err != nil {
		return nil, &CompileError{Err: err}
	}

	anchored := c.config.Anchored || c.isAnchoredStart(ast.Root)

	names := make([]string, ast.NumCaptures+1)
	copy(names[1:], ast.CaptureNames)

	prog, err := c.builder.Build(openSlot0,
		WithAnchoredStart(anchored),
		WithCaptures(ast.NumCaptures+1, names),
	)
	if err != nil {
		return nil, &CompileError{Err: err}
	}
	return prog, nil
}

// patch connects pc's dangling exit to target, inserting a Jmp if pc isn't
// directly patchable (e.g. it's a Split already fully wired by its own
// compileNode call, such as the join point of an alternation).
func (c *Compiler) patch(pc, target PC) error {
	if err := c.builder.Patch(pc, target); err != nil {
		jmp, jerr := c.builder.AddJmp(target)
		if jerr != nil {
			return tooComplex(jerr)
		}
		if err := c.builder.Patch(pc, jmp); err != nil {
			return &CompileError{Err: err}
		}
	}
	return nil
}

// compileNode compiles one AST node into a dangling (start, end) fragment.
func (c *Compiler) compileNode(id syntax.NodeID) (start, end PC, err error) {
	c.depth++
	if c.depth > maxCompileDepth {
		return InvalidPC, InvalidPC, &CompileError{Err: errTooComplex}
	}
	defer func() { c.depth-- }()

	n := c.ast.Node(id)
	switch n.Op {
	case syntax.OpEmpty:
		return c.compileEmpty()
	case syntax.OpLiteral:
		return c.compileLiteral(n)
	case syntax.OpCharClass:
		return c.compileCharClass(n)
	case syntax.OpAnyChar:
		pc, err := c.builder.AddAny(true, InvalidPC)
		if err != nil {
			return InvalidPC, InvalidPC, tooComplex(err)
		}
		return pc, pc, nil
	case syntax.OpAnyCharNoNL:
		pc, err := c.builder.AddAny(false, InvalidPC)
		if err != nil {
			return InvalidPC, InvalidPC, tooComplex(err)
		}
		return pc, pc, nil
	case syntax.OpAnchor:
		pc, err := c.builder.AddAssert(toCompilerAnchor(n.Anchor), InvalidPC)
		if err != nil {
			return InvalidPC, InvalidPC, tooComplex(err)
		}
		return pc, pc, nil
	case syntax.OpCapture:
		return c.compileCapture(n)
	case syntax.OpRepeat:
		return c.compileRepeat(n)
	case syntax.OpConcat:
		return c.compileConcat(n.Children)
	case syntax.OpAlternate:
		return c.compileAlternate(n.Children)
	case syntax.OpLook:
		return c.compileLook(n)
	default:
		return InvalidPC, InvalidPC, &CompileError{Err: fmt.Errorf("unsupported node op %v", n.Op)}
	}
}

func toCompilerAnchor(a syntax.AnchorKind) AnchorKind {
	switch a {
	case syntax.AnchorBeginLine:
		return AnchorBeginLine
	case syntax.AnchorEndLine:
		return AnchorEndLine
	case syntax.AnchorBeginText:
		return AnchorBeginText
	case syntax.AnchorEndText:
		return AnchorEndText
	case syntax.AnchorWordBoundary:
		return AnchorWordBoundary
	case syntax.AnchorNoWordBoundary:
		return AnchorNoWordBoundary
	default:
		return AnchorBeginText
	}
}

func (c *Compiler) compileEmpty() (start, end PC, err error) {
	pc, err := c.builder.AddJmp(InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	return pc, pc, nil
}

// compileLiteral compiles a run of literal runes. When FoldCase is set, each
// rune whose fold orbit has more than one member becomes an OpClass over
// that orbit instead of an OpChar.
func (c *Compiler) compileLiteral(n *syntax.Node) (start, end PC, err error) {
	if len(n.Lit) == 0 {
		return c.compileEmpty()
	}

	var first, prev PC = InvalidPC, InvalidPC
	for _, r := range n.Lit {
		var pc PC
		var aerr error
		if n.FoldCase {
			ranges := foldRuneRanges(r)
			if len(ranges) == 1 && ranges[0].Lo == ranges[0].Hi {
				pc, aerr = c.builder.AddChar(r, InvalidPC)
			} else {
				pc, aerr = c.builder.AddClass(ranges, InvalidPC)
			}
		} else {
			pc, aerr = c.builder.AddChar(r, InvalidPC)
		}
		if aerr != nil {
			return InvalidPC, InvalidPC, tooComplex(aerr)
		}
		if first == InvalidPC {
			first = pc
		}
		if prev != InvalidPC {
			if err := c.patch(prev, pc); err != nil {
				return InvalidPC, InvalidPC, err
			}
		}
		prev = pc
	}
	return first, prev, nil
}

func (c *Compiler) compileCharClass(n *syntax.Node) (start, end PC, err error) {
	if len(n.Ranges) == 0 {
		// Never matches, e.g. [^\s\S]. An OpClass over the empty range set
		// rejects every rune, so the fragment stays fully wired: its Next is
		// patched by the caller like any other consuming instruction, it just
		// never advances.
		pc, err := c.builder.AddClass(nil, InvalidPC)
		if err != nil {
			return InvalidPC, InvalidPC, tooComplex(err)
		}
		return pc, pc, nil
	}
	ranges := make([]RuneRange, len(n.Ranges))
	for i, r := range n.Ranges {
		ranges[i] = RuneRange{r.Lo, r.Hi}
	}
	pc, err := c.builder.AddClass(ranges, InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	return pc, pc, nil
}

func (c *Compiler) compileConcat(children []syntax.NodeID) (start, end PC, err error) {
	if len(children) == 0 {
		return c.compileEmpty()
	}
	start, end, err = c.compileNode(children[0])
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	for _, child := range children[1:] {
		nextStart, nextEnd, err := c.compileNode(child)
		if err != nil {
			return InvalidPC, InvalidPC, err
		}
		if err := c.patch(end, nextStart); err != nil {
			return InvalidPC, InvalidPC, err
		}
		end = nextEnd
	}
	return start, end, nil
}

func (c *Compiler) compileAlternate(children []syntax.NodeID) (start, end PC, err error) {
	if len(children) == 0 {
		return c.compileEmpty()
	}
	if len(children) == 1 {
		return c.compileNode(children[0])
	}

	starts := make([]PC, len(children))
	ends := make([]PC, len(children))
	for i, child := range children {
		s, e, err := c.compileNode(child)
		if err != nil {
			return InvalidPC, InvalidPC, err
		}
		starts[i] = s
		ends[i] = e
	}

	split, err := c.buildSplitChain(starts)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	join, err := c.builder.AddJmp(InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	for _, e := range ends {
		if err := c.patch(e, join); err != nil {
			return InvalidPC, InvalidPC, err
		}
	}
	return split, join, nil
}

// buildSplitChain builds a right-nested chain of splits so alternatives are
// tried in source order.
func (c *Compiler) buildSplitChain(targets []PC) (PC, error) {
	if len(targets) == 1 {
		return targets[0], nil
	}
	if len(targets) == 2 {
		pc, err := c.builder.AddSplit(targets[0], targets[1])
		if err != nil {
			return InvalidPC, tooComplex(err)
		}
		return pc, nil
	}
	right, err := c.buildSplitChain(targets[1:])
	if err != nil {
		return InvalidPC, err
	}
	pc, err := c.builder.AddSplit(targets[0], right)
	if err != nil {
		return InvalidPC, tooComplex(err)
	}
	return pc, nil
}

func (c *Compiler) compileCapture(n *syntax.Node) (start, end PC, err error) {
	subStart, subEnd, err := c.compileNode(n.Child)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	slot := 2 * n.CapIndex
	open, err := c.builder.AddSave(slot, subStart)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	closePC, err := c.builder.AddSave(slot+1, InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	if err := c.patch(subEnd, closePC); err != nil {
		return InvalidPC, InvalidPC, err
	}
	return open, closePC, nil
}

// compileLook compiles (?=...) / (?!...) into an OpLook instruction whose
// sub-program is a self-contained region terminated by OpLookMatch instead
// of OpMatch, so the executor's bounded lookahead probe can recognize
// completion without confusing it for an overall pattern match.
func (c *Compiler) compileLook(n *syntax.Node) (start, end PC, err error) {
	subStart, subEnd, err := c.compileNode(n.Child)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	lookMatch, err := c.builder.AddLookMatch()
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	if err := c.patch(subEnd, lookMatch); err != nil {
		return InvalidPC, InvalidPC, err
	}
	pc, err := c.builder.AddLook(n.Negate, subStart, InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	return pc, pc, nil
}

// compileRepeat lowers a {min,max} repeat. syntax.Parse already normalizes
// *, +, ? into Repeat{0,∞}, Repeat{1,∞}, Repeat{0,1}, so the star/plus/quest
// emitters below are reached through the general bounds here.
func (c *Compiler) compileRepeat(n *syntax.Node) (start, end PC, err error) {
	min, max := n.Min, n.Max
	if max == syntax.MaxUnbounded {
		if min == 0 {
			return c.compileStar(n.Child, n.Greedy)
		}
		return c.compileRepeatMin(n.Child, min, n.Greedy)
	}
	if min == max {
		return c.compileRepeatExact(n.Child, min)
	}
	return c.compileRepeatRange(n.Child, min, max, n.Greedy)
}

func (c *Compiler) compileStar(child syntax.NodeID, greedy bool) (start, end PC, err error) {
	subStart, subEnd, err := c.compileNode(child)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	exit, err := c.builder.AddJmp(InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	var split PC
	if greedy {
		split, err = c.builder.AddSplit(subStart, exit)
	} else {
		split, err = c.builder.AddSplit(exit, subStart)
	}
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	if err := c.patch(subEnd, split); err != nil {
		return InvalidPC, InvalidPC, err
	}
	return split, exit, nil
}

func (c *Compiler) compilePlus(child syntax.NodeID, greedy bool) (start, end PC, err error) {
	subStart, subEnd, err := c.compileNode(child)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	exit, err := c.builder.AddJmp(InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	var split PC
	if greedy {
		split, err = c.builder.AddSplit(subStart, exit)
	} else {
		split, err = c.builder.AddSplit(exit, subStart)
	}
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	if err := c.patch(subEnd, split); err != nil {
		return InvalidPC, InvalidPC, err
	}
	return subStart, exit, nil
}

func (c *Compiler) compileQuest(child syntax.NodeID, greedy bool) (start, end PC, err error) {
	subStart, subEnd, err := c.compileNode(child)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	exit, err := c.builder.AddJmp(InvalidPC)
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	var split PC
	if greedy {
		split, err = c.builder.AddSplit(subStart, exit)
	} else {
		split, err = c.builder.AddSplit(exit, subStart)
	}
	if err != nil {
		return InvalidPC, InvalidPC, tooComplex(err)
	}
	if err := c.patch(subEnd, exit); err != nil {
		return InvalidPC, InvalidPC, err
	}
	return split, exit, nil
}

func (c *Compiler) compileRepeatExact(child syntax.NodeID, n int) (start, end PC, err error) {
	if n == 0 {
		return c.compileEmpty()
	}
	start, end, err = c.compileNode(child)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	for i := 1; i < n; i++ {
		nextStart, nextEnd, err := c.compileNode(child)
		if err != nil {
			return InvalidPC, InvalidPC, err
		}
		if err := c.patch(end, nextStart); err != nil {
			return InvalidPC, InvalidPC, err
		}
		end = nextEnd
	}
	return start, end, nil
}

func (c *Compiler) compileRepeatMin(child syntax.NodeID, min int, greedy bool) (start, end PC, err error) {
	if min == 0 {
		return c.compileStar(child, greedy)
	}
	start, end, err = c.compileRepeatExact(child, min-1)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	tailStart, tailEnd, err := c.compilePlus(child, greedy)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	if err := c.patch(end, tailStart); err != nil {
		return InvalidPC, InvalidPC, err
	}
	return start, tailEnd, nil
}

func (c *Compiler) compileRepeatRange(child syntax.NodeID, min, max int, greedy bool) (start, end PC, err error) {
	start, end, err = c.compileRepeatExact(child, min)
	if err != nil {
		return InvalidPC, InvalidPC, err
	}
	for i := 0; i < max-min; i++ {
		qStart, qEnd, err := c.compileQuest(child, greedy)
		if err != nil {
			return InvalidPC, InvalidPC, err
		}
		if err := c.patch(end, qStart); err != nil {
			return InvalidPC, InvalidPC, err
		}
		end = qEnd
	}
	return start, end, nil
}

// isAnchoredStart reports whether the root node is inherently anchored,
// i.e. begins with \A or (in non-multiline mode) ^. A leading Concat whose
// first child is such an anchor counts too. A begin-line anchor does not
// qualify: in multiline mode it can hold after any newline, so the search
// must still try every start offset.
func (c *Compiler) isAnchoredStart(id syntax.NodeID) bool {
	n := c.ast.Node(id)
	switch n.Op {
	case syntax.OpAnchor:
		return n.Anchor == syntax.AnchorBeginText
	case syntax.OpConcat:
		if len(n.Children) == 0 {
			return false
		}
		return c.isAnchoredStart(n.Children[0])
	case syntax.OpCapture:
		return c.isAnchoredStart(n.Child)
	default:
		return false
	}
}
