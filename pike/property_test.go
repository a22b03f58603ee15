package pike

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCaptureConsistencyProperty: every group's start <= end when both
// participate, and every capture span lies within the overall match span.
func TestCaptureConsistencyProperty(t *testing.T) {
	cases := []struct {
		pattern, text string
	}{
		{`(a+)(b+)?`, "aaa"},
		{`(a+)(b+)`, "aaabbb"},
		{`(a)(b)(c)`, "abc"},
		{`(a|ab)(c|bcd)(d*)`, "abcd"},
		{`(x)?(y)`, "y"},
	}
	for _, c := range cases {
		t.Run(c.pattern, func(t *testing.T) {
			prog := compileFor(t, c.pattern)
			vm := New(prog)
			res, err := vm.Find(c.text, 0, Limits{})
			require.NoError(t, err)
			if !res.Matched {
				return
			}
			start, end, _ := res.Group(0)
			for i := 0; i < res.NumGroups(); i++ {
				s, e, ok := res.Group(i)
				if !ok {
					continue
				}
				require.LessOrEqualf(t, s, e, "group %d: start > end", i)
				require.GreaterOrEqualf(t, s, start, "group %d start precedes match start", i)
				require.LessOrEqualf(t, e, end, "group %d end exceeds match end", i)
			}
		})
	}
}

// TestDeterminismProperty: repeated Find calls on the same (Program, text)
// return identical results.
func TestDeterminismProperty(t *testing.T) {
	cases := []struct{ pattern, text string }{
		{`(a|ab)(c|bcd)(d*)`, "abcd"},
		{`a{2,4}`, "aaaaa"},
		{`.*?b`, "aaab"},
		{`(a+)+b`, "aaaaac"},
	}
	for _, c := range cases {
		t.Run(c.pattern, func(t *testing.T) {
			prog := compileFor(t, c.pattern)
			vm := New(prog)
			first, err := vm.Find(c.text, 0, Limits{})
			require.NoError(t, err)
			for i := 0; i < 10; i++ {
				res, err := vm.Find(c.text, 0, Limits{})
				require.NoError(t, err)
				require.Equal(t, first.Matched, res.Matched)
				if first.Matched {
					require.Equal(t, first.Captures, res.Captures)
				}
			}
		})
	}
}

// TestLeftmostFirstProperty: greedy quantifiers prefer the longer match,
// lazy ones the shorter, among same-start alternatives.
func TestLeftmostFirstProperty(t *testing.T) {
	prog := compileFor(t, `a*`)
	vm := New(prog)
	res, err := vm.Find("aaa", 0, Limits{})
	require.NoError(t, err)
	require.True(t, res.Matched)
	s, e, _ := res.Group(0)
	require.Equal(t, 0, s)
	require.Equal(t, 3, e, "greedy a* must consume all a's")

	prog = compileFor(t, `a*?`)
	vm = New(prog)
	res, err = vm.Find("aaa", 0, Limits{})
	require.NoError(t, err)
	require.True(t, res.Matched)
	s, e, _ = res.Group(0)
	require.Equal(t, 0, s)
	require.Equal(t, 0, e, "lazy a*? must prefer the empty match")
}
