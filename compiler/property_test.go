package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestProgramInBounds: every reachable pc is in bounds and every
// non-terminal instruction has a defined successor (explicit Next/X/Y or a
// terminal op).
func TestProgramInBounds(t *testing.T) {
	patterns := []string{
		`a`, `a|b|c`, `a*`, `a+`, `a?`, `a{2,4}`, `(a)(b)`, `a(?=b)`, `a(?!b)`,
		`[a-z]+`, `\bword\b`, `^abc$`, `(a|b)*c`, `a*?b`,
	}
	for _, pat := range patterns {
		t.Run(pat, func(t *testing.T) {
			prog := mustCompile(t, pat, Config{})
			n := PC(len(prog.Insts))
			checkPC(t, prog.StartAnchored, n)
			matchCount := 0
			for _, inst := range prog.Insts {
				switch inst.Op {
				case OpMatch, OpLookMatch:
					matchCount++
				case OpSplit:
					checkPC(t, inst.X, n)
					checkPC(t, inst.Y, n)
				case OpJmp, OpSave, OpAssert, OpAny, OpAnyNoNL, OpChar, OpClass:
					checkPC(t, inst.Next, n)
				case OpLook:
					checkPC(t, inst.SubStart, n)
					checkPC(t, inst.Next, n)
				}
			}
			require.GreaterOrEqualf(t, matchCount, 1, "program must reach at least one Match/LookMatch")
		})
	}
}

func checkPC(t *testing.T, pc, bound PC) {
	t.Helper()
	require.GreaterOrEqual(t, pc, PC(0), "pc must not be negative")
	require.Lessf(t, pc, bound, "pc %d out of bounds (program has %d instructions)", pc, bound)
}

// TestCompileIdempotent checks that compiling the same pattern twice yields
// structurally identical programs.
func TestCompileIdempotent(t *testing.T) {
	patterns := []string{`a(b|c)d`, `[a-z]+\d{2,4}`, `(foo|bar)*baz`, `x(?=y)`}
	for _, pat := range patterns {
		t.Run(pat, func(t *testing.T) {
			p1 := mustCompile(t, pat, Config{})
			p2 := mustCompile(t, pat, Config{})
			require.Equal(t, p1.Insts, p2.Insts)
			require.Equal(t, p1.Classes, p2.Classes)
			require.Equal(t, p1.StartAnchored, p2.StartAnchored)
			require.Equal(t, p1.NumCaptures, p2.NumCaptures)
		})
	}
}

// TestClassTableSorted checks that every OpClass instruction indexes a
// sorted, non-overlapping range list, the same invariant the AST's
// CharClass carries through compilation unchanged.
func TestClassTableSorted(t *testing.T) {
	patterns := []string{`[a-z]`, `\d`, `\w`, `[^a-z0-9]`, `[a-mz-z0-9]`}
	for _, pat := range patterns {
		t.Run(pat, func(t *testing.T) {
			prog := mustCompile(t, pat, Config{})
			for _, ranges := range prog.Classes {
				for i, r := range ranges {
					require.LessOrEqual(t, r.Lo, r.Hi)
					if i > 0 {
						require.Greater(t, r.Lo, ranges[i-1].Hi)
					}
				}
			}
		})
	}
}
