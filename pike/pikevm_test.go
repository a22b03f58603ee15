package pike

import (
	"errors"
	"testing"
	"time"

	"github.com/coregx/relin/compiler"
	"github.com/coregx/relin/syntax"
)

func compileFor(t *testing.T, pattern string) *compiler.Program {
	t.Helper()
	ast, err := syntax.Parse(pattern, 0)
	if err != nil {
		t.Fatalf("syntax.Parse(%q): %v", pattern, err)
	}
	defer ast.Release()

	prog, err := compiler.NewCompiler(compiler.Config{}).Compile(ast)
	if err != nil {
		t.Fatalf("Compile(%q): %v", pattern, err)
	}
	return prog
}

func find(t *testing.T, pattern, input string) *MatchResult {
	t.Helper()
	vm := New(compileFor(t, pattern))
	res, err := vm.Find(input, 0, Limits{})
	if err != nil {
		t.Fatalf("Find(%q, %q): %v", pattern, input, err)
	}
	return res
}

func TestFind_LiteralMatch(t *testing.T) {
	res := find(t, "abc", "xxabcyy")
	if !res.Matched {
		t.Fatalf("expected a match")
	}
	start, end, ok := res.Group(0)
	if !ok || start != 2 || end != 5 {
		t.Fatalf("got (%d,%d,%v), want (2,5,true)", start, end, ok)
	}
}

func TestFind_NoMatch(t *testing.T) {
	res := find(t, "zzz", "abc")
	if res.Matched {
		t.Fatalf("expected no match")
	}
}

func TestFind_CapturesGroups(t *testing.T) {
	res := find(t, `(\w+)@(\w+)`, "user@host")
	if !res.Matched {
		t.Fatalf("expected a match")
	}
	s1, e1, ok1 := res.Group(1)
	if !ok1 || input(s1, e1, "user@host") != "user" {
		t.Fatalf("group 1 = %q, want user", input(s1, e1, "user@host"))
	}
	s2, e2, ok2 := res.Group(2)
	if !ok2 || input(s2, e2, "user@host") != "host" {
		t.Fatalf("group 2 = %q, want host", input(s2, e2, "user@host"))
	}
}

func input(start, end int, s string) string {
	if start < 0 || end < 0 {
		return ""
	}
	return s[start:end]
}

func TestFind_UnparticipatingGroupIsUnset(t *testing.T) {
	res := find(t, `(a)|(b)`, "b")
	if !res.Matched {
		t.Fatalf("expected a match")
	}
	_, _, ok1 := res.Group(1)
	if ok1 {
		t.Fatalf("group 1 should not have participated")
	}
	_, _, ok2 := res.Group(2)
	if !ok2 {
		t.Fatalf("group 2 should have participated")
	}
}

func TestFind_GreedyQuantifierTakesLongestRun(t *testing.T) {
	res := find(t, "a+", "aaa")
	start, end, _ := res.Group(0)
	if start != 0 || end != 3 {
		t.Fatalf("got (%d,%d), want (0,3) for greedy a+ on aaa", start, end)
	}
}

func TestFind_NonGreedyQuantifierTakesShortestRun(t *testing.T) {
	res := find(t, "a+?", "aaa")
	start, end, _ := res.Group(0)
	if start != 0 || end != 1 {
		t.Fatalf("got (%d,%d), want (0,1) for lazy a+? on aaa", start, end)
	}
}

func TestFind_LeftmostFirstAlternationPriority(t *testing.T) {
	// "a|ab" must prefer "a" (first alternative) even though "ab" would be
	// a longer match at the same start position: leftmost-first, not
	// leftmost-longest.
	res := find(t, "a|ab", "ab")
	_, end, _ := res.Group(0)
	if end != 1 {
		t.Fatalf("got end=%d, want 1 (leftmost-first prefers 'a' over 'ab')", end)
	}
}

func TestFind_LeftmostLongestPrefersLongerAlternative(t *testing.T) {
	prog := compileFor(t, "a|ab")
	vm := New(prog)
	res, err := vm.Find("ab", 0, Limits{Longest: true})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	_, end, _ := res.Group(0)
	if end != 2 {
		t.Fatalf("got end=%d, want 2 (leftmost-longest prefers 'ab')", end)
	}
}

func TestFind_PositiveLookaheadGates(t *testing.T) {
	res := find(t, `foo(?=bar)`, "foobar")
	if !res.Matched {
		t.Fatalf("expected match when lookahead body follows")
	}
	res2 := find(t, `foo(?=bar)`, "foobaz")
	if res2.Matched {
		t.Fatalf("expected no match when lookahead body doesn't follow")
	}
}

func TestFind_NegativeLookaheadGates(t *testing.T) {
	res := find(t, `foo(?!bar)`, "foobaz")
	if !res.Matched {
		t.Fatalf("expected match when lookahead body doesn't follow")
	}
	res2 := find(t, `foo(?!bar)`, "foobar")
	if res2.Matched {
		t.Fatalf("expected no match when negative lookahead body follows")
	}
}

func TestFind_WordBoundary(t *testing.T) {
	res := find(t, `\bfoo\b`, "a foo b")
	if !res.Matched {
		t.Fatalf("expected match at word boundary")
	}
	res2 := find(t, `\bfoo\b`, "afoob")
	if res2.Matched {
		t.Fatalf("expected no match: 'foo' not at word boundary")
	}
}

func TestFind_AnchoredStartOnlyMatchesAtZero(t *testing.T) {
	res := find(t, "^abc", "xabc")
	if res.Matched {
		t.Fatalf("expected no match: ^abc shouldn't match mid-string")
	}
}

func TestFind_StateBudgetExceeded(t *testing.T) {
	// (a+)+b against a long run of 'a's with no trailing 'b' is the
	// canonical catastrophic-backtracking probe; here it must instead
	// blow the state budget (not hang), since the underlying algorithm is
	// a linear simultaneous-state simulation, not backtracking.
	prog := compileFor(t, `(a+)+b`)
	vm := New(prog)
	input := make([]byte, 200)
	for i := range input {
		input[i] = 'a'
	}
	_, err := vm.Find(string(input), 0, Limits{StateBudget: 100})
	if err == nil {
		t.Fatalf("expected a budget error")
	}
	var merr *MatchError
	if !errors.As(err, &merr) || !errors.Is(err, ErrStateBudgetExceeded) {
		t.Fatalf("got %v, want ErrStateBudgetExceeded", err)
	}
}

func TestFind_TimeoutExceeded(t *testing.T) {
	prog := compileFor(t, `(a+)+b`)
	vm := New(prog)
	input := make([]byte, 5000)
	for i := range input {
		input[i] = 'a'
	}
	_, err := vm.Find(string(input), 0, Limits{Timeout: 1 * time.Nanosecond})
	if err == nil {
		t.Fatalf("expected a timeout error")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestFind_EmptyPatternMatchesEmptyString(t *testing.T) {
	res := find(t, "", "")
	if !res.Matched {
		t.Fatalf("expected empty pattern to match empty input")
	}
	start, end, _ := res.Group(0)
	if start != 0 || end != 0 {
		t.Fatalf("got (%d,%d), want (0,0)", start, end)
	}
}

func TestFind_UnicodeRuneStepping(t *testing.T) {
	res := find(t, `.+`, "日本語")
	if !res.Matched {
		t.Fatalf("expected a match")
	}
	_, end, _ := res.Group(0)
	if end != len("日本語") {
		t.Fatalf("got end=%d, want %d (full multibyte string consumed)", end, len("日本語"))
	}
}

func TestFind_MalformedProgramReturnsErrInternal(t *testing.T) {
	prog := &compiler.Program{
		Insts: []compiler.Inst{
			{Op: compiler.OpJmp, Next: 99}, // out-of-bounds target
			{Op: compiler.OpMatch},
		},
		StartAnchored:   0,
		StartUnanchored: 0,
		NumCaptures:     1,
	}
	vm := New(prog)
	_, err := vm.Find("abc", 0, Limits{})
	if err == nil {
		t.Fatalf("expected ErrInternal for a program with an out-of-bounds pc, got nil")
	}
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("got error %v, want one wrapping ErrInternal", err)
	}
}

func TestFind_VMReusableAcrossCalls(t *testing.T) {
	vm := New(compileFor(t, "a+"))
	for i := 0; i < 3; i++ {
		res, err := vm.Find("xxxaaayyy", 0, Limits{})
		if err != nil {
			t.Fatalf("Find: %v", err)
		}
		start, end, _ := res.Group(0)
		if start != 3 || end != 6 {
			t.Fatalf("iteration %d: got (%d,%d), want (3,6)", i, start, end)
		}
	}
}
