package compiler

import (
	"sort"
	"unicode"
)

// foldRuneRanges returns the sorted, merged rune-range set covering r's
// entire unicode.SimpleFold orbit, used to compile a single case-insensitive
// literal rune into one OpClass instead of an alternation of OpChar
// instructions, the rune-level counterpart of syntax.foldRanges applied to
// one rune at compile time.
func foldRuneRanges(r rune) []RuneRange {
	runes := []rune{r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		runes = append(runes, f)
	}
	sort.Slice(runes, func(i, j int) bool { return runes[i] < runes[j] })

	out := make([]RuneRange, 0, len(runes))
	for _, c := range runes {
		if n := len(out); n > 0 && out[n-1].Hi+1 == c {
			out[n-1].Hi = c
			continue
		}
		out = append(out, RuneRange{c, c})
	}
	return out
}
