package syntax

import (
	"unicode/utf8"

	"github.com/coregx/relin/internal/arena"
)

// Flags controls parse-time pattern interpretation. Anchored and longest
// match selection are executor-level concerns and live in the compiler's
// and executor's own config instead.
type Flags uint8

const (
	// FlagCaseInsensitive folds Literal and CharClass runes to match any
	// case variant (via unicode.SimpleFold).
	FlagCaseInsensitive Flags = 1 << iota
	// FlagDotAll makes '.' match '\n' as well as every other rune.
	FlagDotAll
	// FlagMultiline makes '^'/'$' match at line boundaries, not just text
	// boundaries.
	FlagMultiline
)

// maxParseDepth bounds recursive-descent recursion so a deeply nested
// pattern like "((((((...))))))" cannot overflow the goroutine stack.
const maxParseDepth = 1000

// maxRepeatBound caps the numeric value accepted for {n} / {n,m} bounds.
// Bounds above this are rejected with ErrInvalidRepeatSize before the
// compiler ever sees them; the arena's own hard cap is the backstop for
// bounds below this that still expand to a pathologically large program.
const maxRepeatBound = 1_000_000

// Parser is a recursive-descent pattern→AST parser: parseAlternation >
// parseConcat > parseQuantifiedTerm > parseAtom, with precedence
// alt < concat < quantified-atom.
type Parser struct {
	pattern string
	pos     int
	flags   Flags
	ast     *AST
	nextCap int
	depth   int
}

// Parse compiles pattern into an AST under the given flags, or returns a
// *ParseError with byte offset and context.
func Parse(pattern string, flags Flags) (*AST, error) {
	if !utf8.ValidString(pattern) {
		return nil, newError(ErrInvalidUTF8, pattern, 0)
	}

	a := arena.New(4096, 0)
	ast := &AST{
		arena: a,
		nodes: arena.NewSlab[Node](a),
	}
	p := &Parser{pattern: pattern, flags: flags, ast: ast, nextCap: 1}

	root, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.pattern) {
		// Only ')' can legitimately stop parseAlternation early.
		return nil, newError(ErrMissingParen, pattern, p.pos)
	}

	ast.Root = root
	ast.NumCaptures = p.nextCap - 1
	if ast.CaptureNames == nil {
		ast.CaptureNames = make([]string, ast.NumCaptures)
	}
	return ast, nil
}

func (p *Parser) errAt(kind ErrorKind, pos int) error {
	return newError(kind, p.pattern, pos)
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > maxParseDepth {
		return p.errAt(ErrTooComplex, p.pos)
	}
	return nil
}

func (p *Parser) leave() { p.depth-- }

func (p *Parser) eof() bool { return p.pos >= len(p.pattern) }

func (p *Parser) peekByte() byte {
	if p.eof() {
		return 0
	}
	return p.pattern[p.pos]
}

func (p *Parser) node(n Node) (NodeID, error) {
	id, err := p.ast.newNode(n)
	if err != nil {
		perr := newError(ErrTooComplex, p.pattern, p.pos)
		perr.Err = ErrArena
		return InvalidNode, perr
	}
	return id, nil
}

// decodeRune decodes one rune from the pattern at p.pos, advancing p.pos.
// The pattern was already validated as UTF-8 by Parse, so this never hits
// the replacement-char path.
func (p *Parser) decodeRune() rune {
	r, size := utf8.DecodeRuneInString(p.pattern[p.pos:])
	p.pos += size
	return r
}

// --- parseAlternation: one or more parseConcat separated by '|' ---

func (p *Parser) parseAlternation() (NodeID, error) {
	if err := p.enter(); err != nil {
		return InvalidNode, err
	}
	defer p.leave()

	first, err := p.parseConcat()
	if err != nil {
		return InvalidNode, err
	}
	if p.eof() || p.peekByte() != '|' {
		return first, nil
	}

	children := []NodeID{first}
	for !p.eof() && p.peekByte() == '|' {
		p.pos++ // consume '|'
		next, err := p.parseConcat()
		if err != nil {
			return InvalidNode, err
		}
		children = append(children, next)
	}
	return p.node(Node{Op: OpAlternate, Children: children})
}

// --- parseConcat: zero or more parseQuantifiedTerm, stopping at '|', ')', EOF ---

func (p *Parser) parseConcat() (NodeID, error) {
	if err := p.enter(); err != nil {
		return InvalidNode, err
	}
	defer p.leave()

	var children []NodeID
	for !p.eof() && p.peekByte() != '|' && p.peekByte() != ')' {
		term, err := p.parseQuantifiedTerm()
		if err != nil {
			return InvalidNode, err
		}
		children = append(children, term)
	}

	children = p.mergeLiterals(children)

	switch len(children) {
	case 0:
		return p.node(Node{Op: OpEmpty})
	case 1:
		return children[0], nil
	default:
		return p.node(Node{Op: OpConcat, Children: children})
	}
}

// mergeLiterals coalesces runs of adjacent, unquantified Literal nodes with
// matching fold-case into a single Literal.
func (p *Parser) mergeLiterals(children []NodeID) []NodeID {
	if len(children) < 2 {
		return children
	}
	out := children[:0:0]
	for _, id := range children {
		n := p.ast.Node(id)
		if n.Op == OpLiteral && len(out) > 0 {
			prev := p.ast.Node(out[len(out)-1])
			if prev.Op == OpLiteral && prev.FoldCase == n.FoldCase {
				prev.Lit = append(prev.Lit, n.Lit...)
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// --- parseQuantifiedTerm: parseAtom optionally followed by a quantifier ---

func (p *Parser) parseQuantifiedTerm() (NodeID, error) {
	if err := p.enter(); err != nil {
		return InvalidNode, err
	}
	defer p.leave()

	atom, err := p.parseAtom()
	if err != nil {
		return InvalidNode, err
	}

	min, max, ok, err := p.tryConsumeQuantifier()
	if err != nil {
		return InvalidNode, err
	}
	if !ok {
		return atom, nil
	}

	greedy := true
	if !p.eof() && p.peekByte() == '?' {
		p.pos++
		greedy = false
	}

	// Reject stacked/possessive quantifiers: a**, a++, a*+, a{2}{3}, ...
	if !p.eof() {
		if b := p.peekByte(); b == '*' || b == '+' {
			return InvalidNode, p.errAt(ErrInvalidRepeat, p.pos)
		}
		if p.peekByte() == '{' {
			if _, _, ok2, _ := p.peekQuantifierSpec(p.pos); ok2 {
				return InvalidNode, p.errAt(ErrInvalidRepeat, p.pos)
			}
		}
	}

	return p.node(Node{Op: OpRepeat, Min: min, Max: max, Greedy: greedy, Child: atom})
}

// tryConsumeQuantifier consumes a trailing *, +, ? or {n,m} token if present,
// returning its (min, max) bounds. ok is false (and nothing consumed) if no
// quantifier token follows.
func (p *Parser) tryConsumeQuantifier() (min, max int, ok bool, err error) {
	if p.eof() {
		return 0, 0, false, nil
	}
	switch p.peekByte() {
	case '*':
		p.pos++
		return 0, MaxUnbounded, true, nil
	case '+':
		p.pos++
		return 1, MaxUnbounded, true, nil
	case '?':
		p.pos++
		return 0, 1, true, nil
	case '{':
		min, max, ok, perr := p.peekQuantifierSpec(p.pos)
		if perr != nil {
			return 0, 0, false, perr
		}
		if !ok {
			return 0, 0, false, nil
		}
		_, _, _, end := p.scanQuantifierSpec(p.pos)
		p.pos = end
		return min, max, true, nil
	default:
		return 0, 0, false, nil
	}
}

// peekQuantifierSpec reports whether pattern[pos:] begins a syntactically
// valid {n} / {n,} / {n,m} token without consuming it, validating bounds.
func (p *Parser) peekQuantifierSpec(pos int) (min, max int, ok bool, err error) {
	min, max, valid, end := p.scanQuantifierSpec(pos)
	if end < 0 {
		return 0, 0, false, nil // not a repeat token at all; caller treats '{' as literal
	}
	if !valid {
		return 0, 0, false, p.errAt(ErrInvalidRepeatSize, pos)
	}
	if max != MaxUnbounded && min > max {
		return 0, 0, false, p.errAt(ErrInvalidRepeatSize, pos)
	}
	return min, max, true, nil
}

// scanQuantifierSpec scans a {n}/{n,}/{n,m} token starting at pattern[pos].
// end is -1 if pattern[pos] does not begin a digit-led repeat token at all
// (so the caller should treat '{' as a literal byte). Otherwise end is the
// position just past the closing '}', and valid is false if the numbers
// present are out of the accepted range (still consumable as end, but an
// error for the caller to report at pos).
func (p *Parser) scanQuantifierSpec(pos int) (min, max int, valid bool, end int) {
	s := p.pattern
	i := pos
	if i >= len(s) || s[i] != '{' {
		return 0, 0, false, -1
	}
	i++
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, 0, false, -1 // "{" not followed by a digit: literal brace
	}
	min = atoiClamped(s[start:i])
	max = min
	if i < len(s) && s[i] == ',' {
		i++
		start2 := i
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
		}
		if i == start2 {
			max = MaxUnbounded
		} else {
			max = atoiClamped(s[start2:i])
		}
	}
	if i >= len(s) || s[i] != '}' {
		return 0, 0, false, -1 // unterminated: treat as literal brace
	}
	end = i + 1
	valid = min <= maxRepeatBound && (max == MaxUnbounded || max <= maxRepeatBound)
	return min, max, valid, end
}

func atoiClamped(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
		if n > maxRepeatBound*10 {
			return maxRepeatBound * 10
		}
	}
	return n
}

// --- parseAtom: dispatches on the leading byte ---

func (p *Parser) parseAtom() (NodeID, error) {
	if err := p.enter(); err != nil {
		return InvalidNode, err
	}
	defer p.leave()

	if p.eof() {
		return p.node(Node{Op: OpEmpty})
	}

	switch b := p.peekByte(); b {
	case '*', '+':
		return InvalidNode, p.errAt(ErrInvalidRepeat, p.pos)
	case '?':
		return InvalidNode, p.errAt(ErrInvalidRepeat, p.pos)
	case '(':
		return p.parseGroup()
	case '[':
		return p.parseCharClass()
	case '.':
		p.pos++
		if p.flags&FlagDotAll != 0 {
			return p.node(Node{Op: OpAnyChar})
		}
		return p.node(Node{Op: OpAnyCharNoNL})
	case '^':
		p.pos++
		if p.flags&FlagMultiline != 0 {
			return p.node(Node{Op: OpAnchor, Anchor: AnchorBeginLine})
		}
		return p.node(Node{Op: OpAnchor, Anchor: AnchorBeginText})
	case '$':
		p.pos++
		if p.flags&FlagMultiline != 0 {
			return p.node(Node{Op: OpAnchor, Anchor: AnchorEndLine})
		}
		return p.node(Node{Op: OpAnchor, Anchor: AnchorEndText})
	case '\\':
		return p.parseEscape()
	case '{':
		if _, _, ok, err := p.peekQuantifierSpec(p.pos); err != nil {
			return InvalidNode, err
		} else if ok {
			return InvalidNode, p.errAt(ErrInvalidRepeat, p.pos)
		}
		p.pos++
		return p.node(Node{Op: OpLiteral, Lit: []rune{'{'}, FoldCase: p.flags&FlagCaseInsensitive != 0})
	default:
		r := p.decodeRune()
		return p.node(Node{Op: OpLiteral, Lit: []rune{r}, FoldCase: p.flags&FlagCaseInsensitive != 0})
	}
}

// parseGroup parses "(...)" in all its forms: capturing, (?:...),
// (?=...), (?!...), (?P<name>...) / (?<name>...). Lookbehind ((?<=...),
// (?<!...)) and inline flags ((?i)...) are rejected.
func (p *Parser) parseGroup() (NodeID, error) {
	openPos := p.pos
	p.pos++ // consume '('

	if p.eof() {
		return InvalidNode, p.errAt(ErrMissingParen, openPos)
	}

	if p.peekByte() == '?' {
		return p.parseSpecialGroup(openPos)
	}

	capIndex := p.nextCap
	p.nextCap++
	for len(p.ast.CaptureNames) < capIndex {
		p.ast.CaptureNames = append(p.ast.CaptureNames, "")
	}

	inner, err := p.parseAlternation()
	if err != nil {
		return InvalidNode, err
	}
	if p.eof() || p.peekByte() != ')' {
		return InvalidNode, p.errAt(ErrMissingParen, openPos)
	}
	p.pos++

	return p.node(Node{Op: OpCapture, CapIndex: capIndex, Child: inner})
}

func (p *Parser) parseSpecialGroup(openPos int) (NodeID, error) {
	p.pos++ // consume '?'
	if p.eof() {
		return InvalidNode, p.errAt(ErrInvalidPerlOp, p.pos)
	}

	switch p.peekByte() {
	case ':':
		p.pos++
		inner, err := p.parseAlternation()
		if err != nil {
			return InvalidNode, err
		}
		if p.eof() || p.peekByte() != ')' {
			return InvalidNode, p.errAt(ErrMissingParen, openPos)
		}
		p.pos++
		return inner, nil

	case '=', '!':
		negate := p.peekByte() == '!'
		p.pos++
		inner, err := p.parseAlternation()
		if err != nil {
			return InvalidNode, err
		}
		if p.eof() || p.peekByte() != ')' {
			return InvalidNode, p.errAt(ErrMissingParen, openPos)
		}
		p.pos++
		return p.node(Node{Op: OpLook, Negate: negate, Child: inner})

	case '<':
		// (?<=...) / (?<!...) lookbehind: rejected, incompatible with the
		// linear-time guarantee. (?<name>...) named capture: accepted.
		if p.pos+1 < len(p.pattern) && (p.pattern[p.pos+1] == '=' || p.pattern[p.pos+1] == '!') {
			return InvalidNode, p.errAt(ErrInvalidPerlOp, openPos)
		}
		p.pos++ // consume '<'
		return p.parseNamedCapture(openPos, '>')

	case 'P':
		if p.pos+1 < len(p.pattern) && p.pattern[p.pos+1] == '<' {
			p.pos += 2 // consume "P<"
			return p.parseNamedCapture(openPos, '>')
		}
		return InvalidNode, p.errAt(ErrInvalidPerlOp, openPos)

	default:
		// Inline flags (?i), (?m), (?s), conditional groups, and anything
		// else are all rejected uniformly.
		return InvalidNode, p.errAt(ErrInvalidPerlOp, openPos)
	}
}

func (p *Parser) parseNamedCapture(openPos int, closeByte byte) (NodeID, error) {
	start := p.pos
	for !p.eof() && p.peekByte() != closeByte {
		p.pos++
	}
	if p.eof() {
		return InvalidNode, p.errAt(ErrInvalidPerlOp, openPos)
	}
	name := p.pattern[start:p.pos]
	p.pos++ // consume closeByte

	capIndex := p.nextCap
	p.nextCap++
	for len(p.ast.CaptureNames) < capIndex {
		p.ast.CaptureNames = append(p.ast.CaptureNames, "")
	}
	p.ast.CaptureNames[capIndex-1] = name

	inner, err := p.parseAlternation()
	if err != nil {
		return InvalidNode, err
	}
	if p.eof() || p.peekByte() != ')' {
		return InvalidNode, p.errAt(ErrMissingParen, openPos)
	}
	p.pos++

	return p.node(Node{Op: OpCapture, CapIndex: capIndex, CapName: name, Child: inner})
}
