package relin

import (
	"strings"
	"testing"
	"time"

	"github.com/coregx/relin/pike"
)

// TestCompile exercises the compile error taxonomy as well as the happy
// path.
func TestCompile(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		wantErr bool
	}{
		{"simple literal", "hello", false},
		{"digit class", `\d`, false},
		{"word plus", `\w+`, false},
		{"alternation", "foo|bar", false},
		{"repetition", "a+", false},
		{"bounded repeat", "a{2,4}", false},
		{"lookahead", "a(?=b)", false},
		{"negative lookahead", "a(?!b)", false},
		{"unclosed group", "(", true},
		{"unclosed class", "[a-z", true},
		{"trailing backslash", `a\`, true},
		{"bad escape", `\q`, true},
		{"backreference rejected", `(a)\1`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern, 0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Compile(%q) error = %v, wantErr %v", tt.pattern, err, tt.wantErr)
			}
			if !tt.wantErr && p == nil {
				t.Fatal("Compile() returned nil Pattern with no error")
			}
		})
	}
}

func TestMustCompilePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("MustCompile did not panic on invalid pattern")
		}
	}()
	MustCompile("(", 0)
}

// TestScenarios covers end-to-end matching across the operator surface:
// alternation with captures, lazy quantifiers, leftmost-longest capture
// splitting, bounded repeats, and word boundaries.
func TestScenarios(t *testing.T) {
	tests := []struct {
		name       string
		pattern    string
		flags      Flags
		text       string
		wantMatch  bool
		wantSpan   [2]int
		wantGroup1 [2]int // zero value if not checked
	}{
		{
			name:       "alternation capture first branch",
			pattern:    `a(b|c)d`,
			text:       "xabdy",
			wantMatch:  true,
			wantSpan:   [2]int{1, 4},
			wantGroup1: [2]int{2, 3},
		},
		{
			name:       "alternation capture second branch",
			pattern:    `a(b|c)d`,
			text:       "xacdy",
			wantMatch:  true,
			wantSpan:   [2]int{1, 4},
			wantGroup1: [2]int{2, 3},
		},
		{
			name:      "lazy star still reaches target",
			pattern:   `.*?b`,
			text:      "aaab",
			wantMatch: true,
			wantSpan:  [2]int{0, 4},
		},
		{
			name:       "leftmost-longest splits captures maximally",
			pattern:    `(a+)(a+)`,
			flags:      FlagLongest,
			text:       "aaaa",
			wantMatch:  true,
			wantSpan:   [2]int{0, 4},
			wantGroup1: [2]int{0, 3},
		},
		{
			name:      "bounded repeat stops at max",
			pattern:   `a{2,4}`,
			text:      "aaaaa",
			wantMatch: true,
			wantSpan:  [2]int{0, 4},
		},
		{
			name:      "word boundary",
			pattern:   `\bword\b`,
			text:      "a word b",
			wantMatch: true,
			wantSpan:  [2]int{2, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Compile(tt.pattern, tt.flags)
			if err != nil {
				t.Fatalf("Compile(%q): %v", tt.pattern, err)
			}
			res, err := p.Match([]byte(tt.text), 0)
			if err != nil {
				t.Fatalf("Match: %v", err)
			}
			if res.Matched != tt.wantMatch {
				t.Fatalf("Matched = %v, want %v", res.Matched, tt.wantMatch)
			}
			if !tt.wantMatch {
				return
			}
			if res.Span != tt.wantSpan {
				t.Errorf("Span = %v, want %v", res.Span, tt.wantSpan)
			}
			if tt.wantGroup1 != ([2]int{}) {
				if len(res.Captures) < 2 {
					t.Fatalf("expected at least one capture group, got %d", len(res.Captures))
				}
				if res.Captures[1] != tt.wantGroup1 {
					t.Errorf("group 1 = %v, want %v", res.Captures[1], tt.wantGroup1)
				}
			}
		})
	}
}

// TestReDoSRegression: a classically
// catastrophic-backtracking pattern must still return in bounded time
// because the executor never backtracks, it only deduplicates threads.
func TestReDoSRegression(t *testing.T) {
	p, err := Compile(`(a+)+b`, 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	p.SetLimits(pike.Limits{Timeout: 100 * time.Millisecond, StateBudget: 10_000_000})

	text := strings.Repeat("a", 30) + "c"
	done := make(chan struct{})
	var res MatchResult
	var matchErr error
	go func() {
		res, matchErr = p.Match([]byte(text), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Match did not return within 2s; engine is not linear on (a+)+b")
	}
	if matchErr != nil {
		t.Fatalf("Match returned an error instead of a clean no-match: %v", matchErr)
	}
	if res.Matched {
		t.Fatal("expected no match for (a+)+b against an all-'a' string with no trailing b")
	}
}

func TestEmptyPatternMatchesEmptyString(t *testing.T) {
	p := MustCompile("", 0)
	res, err := p.Match([]byte("anything"), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !res.Matched || res.Span != ([2]int{0, 0}) {
		t.Fatalf("got %+v, want matched empty span at 0", res)
	}
}

func TestAnchoredEmptyTextBeginEnd(t *testing.T) {
	p := MustCompile("^$", 0)

	res, err := p.Match([]byte(""), 0)
	if err != nil || !res.Matched {
		t.Fatalf("^$ on empty text: got %+v, err=%v, want match", res, err)
	}

	res, err = p.Match([]byte("x"), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Matched {
		t.Fatalf("^$ on non-empty text: got %+v, want no match", res)
	}
}

func TestMultilineCaretMatchesAfterNewline(t *testing.T) {
	p := MustCompile("^abc", FlagMultiline)
	res, err := p.Match([]byte("x\nabc"), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !res.Matched || res.Span != ([2]int{2, 5}) {
		t.Fatalf("got %+v, want match at (2,5) after the newline", res)
	}
}

func TestDotExcludesNewlineUnlessDotAll(t *testing.T) {
	p := MustCompile(".", 0)
	res, err := p.Match([]byte("\n"), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if res.Matched {
		t.Fatal(". matched newline without FlagDotAll")
	}

	p = MustCompile(".", FlagDotAll)
	res, err = p.Match([]byte("\n"), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !res.Matched {
		t.Fatal(". with FlagDotAll failed to match newline")
	}
}

func TestDeterminism(t *testing.T) {
	p := MustCompile(`(a|ab)(c|bcd)(d*)`, 0)
	text := "abcd"
	first, err := p.Match([]byte(text), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	for i := 0; i < 20; i++ {
		res, err := p.Match([]byte(text), 0)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if res.Matched != first.Matched || res.Span != first.Span {
			t.Fatalf("non-deterministic result on iteration %d: got %+v, want %+v", i, res, first)
		}
	}
}

func TestCaptureConsistency(t *testing.T) {
	p := MustCompile(`(a+)(b+)?`, 0)
	res, err := p.Match([]byte("aaa"), 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if !res.Matched {
		t.Fatal("expected a match")
	}
	for i, span := range res.Captures {
		if span[0] < 0 && span[1] < 0 {
			continue // unparticipating group, consistent
		}
		if span[0] > span[1] {
			t.Errorf("group %d: start %d > end %d", i, span[0], span[1])
		}
		if span[0] < res.Span[0] || span[1] > res.Span[1] {
			t.Errorf("group %d span %v escapes overall match span %v", i, span, res.Span)
		}
	}
}

// TestLiteralRoundTrip: a metacharacter-free literal must match iff it's a
// substring, at its first occurrence.
func TestLiteralRoundTrip(t *testing.T) {
	tests := []struct {
		literal, text string
		wantMatch     bool
		wantStart     int
	}{
		{"needle", "haystack needle haystack", true, 9},
		{"needle", "no match here", false, -1},
		{"abc", "xxabcabc", true, 2},
	}
	for _, tt := range tests {
		p := MustCompile(tt.literal, 0)
		res, err := p.Match([]byte(tt.text), 0)
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if res.Matched != tt.wantMatch {
			t.Fatalf("%q in %q: matched=%v, want %v", tt.literal, tt.text, res.Matched, tt.wantMatch)
		}
		if tt.wantMatch && res.Span[0] != tt.wantStart {
			t.Fatalf("%q in %q: start=%d, want %d", tt.literal, tt.text, res.Span[0], tt.wantStart)
		}
	}
}
