// Package relin implements an RE2-compatible, linear-time regular
// expression engine: pattern string → AST (syntax) → Thompson NFA bytecode
// (compiler) → simultaneous-state executor (pike). It deliberately excludes
// backreferences, lookbehind, and possessive quantifiers, the features that
// make backtracking engines exponential on adversarial input.
//
// The public surface splits into a small core API (Compile/Pattern/Match)
// and a stdlib-regexp-flavored convenience wrapper (Regex) built entirely
// on top of it.
package relin

import (
	"fmt"
	"time"

	"github.com/coregx/relin/compiler"
	"github.com/coregx/relin/pike"
	"github.com/coregx/relin/syntax"
)

// Flags selects pattern interpretation and search behavior at Compile time.
type Flags uint8

const (
	// FlagCaseInsensitive folds letters to match any case variant.
	FlagCaseInsensitive Flags = 1 << iota
	// FlagDotAll makes '.' match '\n' too.
	FlagDotAll
	// FlagMultiline makes '^'/'$' match at every line boundary.
	FlagMultiline
	// FlagAnchored forces every search to require a match starting exactly
	// at the caller's start offset, regardless of the pattern's own prefix.
	FlagAnchored
	// FlagLongest switches from the default leftmost-first (Perl/RE2)
	// matching to POSIX leftmost-longest matching.
	FlagLongest
)

// DefaultTimeout bounds a single Match call when the caller doesn't
// override it via Pattern.SetLimits, so a pathological pattern degrades
// instead of hanging.
const DefaultTimeout = 1 * time.Second

// Pattern is a compiled, immutable regular expression. A *Pattern is safe
// for concurrent Match calls from multiple goroutines; each call runs
// against a private pike.VM pulled from an internal pool rather than one
// shared mutable executor.
type Pattern struct {
	source  string
	prog    *compiler.Program
	longest bool
	limits  pike.Limits

	vms chan *pike.VM // small pool of reusable executors
}

// MatchResult reports the outcome of a Pattern.Match call.
type MatchResult struct {
	Matched  bool
	Span     [2]int
	Captures [][2]int
}

// Compile parses and compiles pattern under flags.
func Compile(pattern string, flags Flags) (*Pattern, error) {
	ast, err := syntax.Parse(pattern, toSyntaxFlags(flags))
	if err != nil {
		return nil, err
	}
	defer ast.Release()

	c := compiler.NewCompiler(compiler.Config{Anchored: flags&FlagAnchored != 0})
	prog, err := c.Compile(ast)
	if err != nil {
		return nil, err
	}

	return &Pattern{
		source:  pattern,
		prog:    prog,
		longest: flags&FlagLongest != 0,
		limits:  pike.Limits{Timeout: DefaultTimeout, StateBudget: 50_000_000},
		vms:     make(chan *pike.VM, 4),
	}, nil
}

// MustCompile is like Compile but panics on error, for package-level
// pattern literals the way the stdlib's regexp.MustCompile is used.
func MustCompile(pattern string, flags Flags) *Pattern {
	p, err := Compile(pattern, flags)
	if err != nil {
		panic(fmt.Sprintf("relin: Compile(%q): %v", pattern, err))
	}
	return p
}

// SetLimits overrides the default per-search timeout and state budget.
func (p *Pattern) SetLimits(limits pike.Limits) {
	p.limits = limits
}

// String returns the source pattern text.
func (p *Pattern) String() string { return p.source }

// NumSubexp returns the number of capture groups, not counting group 0.
func (p *Pattern) NumSubexp() int { return p.prog.NumCaptures - 1 }

// SubexpNames returns capture group names, index 0 being "" for the whole
// match.
func (p *Pattern) SubexpNames() []string { return p.prog.CaptureNames }

func (p *Pattern) acquireVM() *pike.VM {
	select {
	case vm := <-p.vms:
		return vm
	default:
		return pike.New(p.prog)
	}
}

func (p *Pattern) releaseVM(vm *pike.VM) {
	select {
	case p.vms <- vm:
	default:
	}
}

// Match searches text starting no earlier than start and returns the
// leftmost match, or Matched == false if none exists within the configured
// Limits.
func (p *Pattern) Match(text []byte, start int) (MatchResult, error) {
	vm := p.acquireVM()
	defer p.releaseVM(vm)

	limits := p.limits
	limits.Longest = p.longest
	res, err := vm.Find(string(text), start, limits)
	if err != nil {
		return MatchResult{}, err
	}
	return toPublicResult(res), nil
}

// Release is a no-op retained for API parity with the arena-backed stages
// of compilation (syntax.AST.Release); Pattern itself holds no arena, only
// plain Go slices, once compiled.
func (p *Pattern) Release() {}

func toPublicResult(res *pike.MatchResult) MatchResult {
	if res == nil || !res.Matched {
		return MatchResult{Matched: false}
	}
	out := MatchResult{Matched: true}
	start, end, _ := res.Group(0)
	out.Span = [2]int{start, end}
	out.Captures = make([][2]int, res.NumGroups())
	for i := range out.Captures {
		s, e, _ := res.Group(i)
		out.Captures[i] = [2]int{s, e}
	}
	return out
}

func toSyntaxFlags(flags Flags) syntax.Flags {
	var sf syntax.Flags
	if flags&FlagCaseInsensitive != 0 {
		sf |= syntax.FlagCaseInsensitive
	}
	if flags&FlagDotAll != 0 {
		sf |= syntax.FlagDotAll
	}
	if flags&FlagMultiline != 0 {
		sf |= syntax.FlagMultiline
	}
	return sf
}
