package relin

import (
	"strings"
	"unicode/utf8"
)

// Regex wraps a *Pattern with a stdlib regexp-flavored convenience API
// (Find/FindString/FindAllIndex/MatchString/ReplaceAll). It contributes no
// new matching contract: every method here is built purely from
// Pattern.Match.
//
// A Regex is safe to use concurrently from multiple goroutines.
type Regex struct {
	pattern *Pattern
	source  string
}

// CompileRegex compiles pattern and wraps it in the convenience API.
func CompileRegex(pattern string, flags Flags) (*Regex, error) {
	p, err := Compile(pattern, flags)
	if err != nil {
		return nil, err
	}
	return &Regex{pattern: p, source: pattern}, nil
}

// MustCompileRegex is like CompileRegex but panics on error.
func MustCompileRegex(pattern string, flags Flags) *Regex {
	re, err := CompileRegex(pattern, flags)
	if err != nil {
		panic("relin: CompileRegex(" + pattern + "): " + err.Error())
	}
	return re
}

// String returns the source text the Regex was compiled from.
func (re *Regex) String() string { return re.source }

// NumSubexp returns the number of explicit capture groups (not counting
// group 0, the whole match).
func (re *Regex) NumSubexp() int { return re.pattern.NumSubexp() }

// SubexpNames returns capture group names, index 0 being "" for the whole
// match.
func (re *Regex) SubexpNames() []string { return re.pattern.SubexpNames() }

// Match reports whether b contains any match of the pattern.
func (re *Regex) Match(b []byte) bool {
	res, err := re.pattern.Match(b, 0)
	return err == nil && res.Matched
}

// MatchString reports whether s contains any match of the pattern.
func (re *Regex) MatchString(s string) bool {
	return re.Match([]byte(s))
}

// Find returns the leftmost match in b, or nil if there is none.
func (re *Regex) Find(b []byte) []byte {
	res, err := re.pattern.Match(b, 0)
	if err != nil || !res.Matched {
		return nil
	}
	return b[res.Span[0]:res.Span[1]]
}

// FindString returns the leftmost match in s, or "" if there is none.
func (re *Regex) FindString(s string) string {
	m := re.Find([]byte(s))
	if m == nil {
		return ""
	}
	return string(m)
}

// FindIndex returns the [start, end) byte offsets of the leftmost match in
// b, or nil if there is none.
func (re *Regex) FindIndex(b []byte) []int {
	res, err := re.pattern.Match(b, 0)
	if err != nil || !res.Matched {
		return nil
	}
	return []int{res.Span[0], res.Span[1]}
}

// FindStringIndex is FindIndex for a string argument.
func (re *Regex) FindStringIndex(s string) []int {
	return re.FindIndex([]byte(s))
}

// FindSubmatch returns the leftmost match and its capture groups, or nil if
// there is no match. Result[0] is the whole match; an unmatched group is
// nil.
func (re *Regex) FindSubmatch(b []byte) [][]byte {
	res, err := re.pattern.Match(b, 0)
	if err != nil || !res.Matched {
		return nil
	}
	out := make([][]byte, len(res.Captures))
	for i, span := range res.Captures {
		if span[0] < 0 || span[1] < 0 {
			continue
		}
		out[i] = b[span[0]:span[1]]
	}
	return out
}

// FindStringSubmatch is FindSubmatch for a string argument.
func (re *Regex) FindStringSubmatch(s string) []string {
	groups := re.FindSubmatch([]byte(s))
	if groups == nil {
		return nil
	}
	out := make([]string, len(groups))
	for i, g := range groups {
		if g != nil {
			out[i] = string(g)
		}
	}
	return out
}

// FindSubmatchIndex returns the [2i, 2i+1] offset pairs for the whole match
// (i=0) and every capture group, or nil if there is no match. Unmatched
// groups get [-1, -1].
func (re *Regex) FindSubmatchIndex(b []byte) []int {
	res, err := re.pattern.Match(b, 0)
	if err != nil || !res.Matched {
		return nil
	}
	out := make([]int, 0, 2*len(res.Captures))
	for _, span := range res.Captures {
		out = append(out, span[0], span[1])
	}
	return out
}

// FindStringSubmatchIndex is FindSubmatchIndex for a string argument.
func (re *Regex) FindStringSubmatchIndex(s string) []int {
	return re.FindSubmatchIndex([]byte(s))
}

// allMatches walks every successive, non-overlapping match of the pattern in
// b, calling deliver for each, up to n matches (n < 0 means unlimited). An
// empty match coinciding with the end of the previous match is skipped, and
// the scan advances one rune past an empty match, the same traversal rules
// the stdlib regexp package applies in its FindAll/ReplaceAll family.
func (re *Regex) allMatches(b []byte, n int, deliver func(MatchResult)) {
	if n < 0 {
		n = len(b) + 1
	}
	prevMatchEnd := -1
	for pos, i := 0, 0; i < n && pos <= len(b); {
		res, err := re.pattern.Match(b, pos)
		if err != nil || !res.Matched {
			break
		}
		accept := true
		if res.Span[1] == res.Span[0] {
			if res.Span[0] == prevMatchEnd {
				accept = false
			}
			_, width := utf8.DecodeRune(b[res.Span[0]:])
			if width == 0 {
				width = 1
			}
			pos = res.Span[0] + width
		} else {
			pos = res.Span[1]
		}
		prevMatchEnd = res.Span[1]
		if accept {
			deliver(res)
			i++
		}
	}
}

// FindAll returns every successive, non-overlapping match of the pattern in
// b. If n >= 0, at most n matches are returned; n < 0 means unlimited.
func (re *Regex) FindAll(b []byte, n int) [][]byte {
	var out [][]byte
	re.allMatches(b, n, func(res MatchResult) {
		out = append(out, b[res.Span[0]:res.Span[1]])
	})
	return out
}

// FindAllString is FindAll for a string argument.
func (re *Regex) FindAllString(s string, n int) []string {
	matches := re.FindAll([]byte(s), n)
	if matches == nil {
		return nil
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = string(m)
	}
	return out
}

// FindAllIndex is FindAll but returns [start, end) offset pairs instead of
// the matched bytes.
func (re *Regex) FindAllIndex(b []byte, n int) [][]int {
	var out [][]int
	re.allMatches(b, n, func(res MatchResult) {
		out = append(out, []int{res.Span[0], res.Span[1]})
	})
	return out
}

// FindAllStringIndex is FindAllIndex for a string argument.
func (re *Regex) FindAllStringIndex(s string, n int) [][]int {
	return re.FindAllIndex([]byte(s), n)
}

// ReplaceAll replaces every match of the pattern in src with repl, returning
// the result as a new slice. repl may reference captured groups with
// "${name}" or "$1"-style numeric references, resolved the same way
// stdlib regexp.Expand does.
func (re *Regex) ReplaceAll(src, repl []byte) []byte {
	var out []byte
	last := 0
	re.allMatches(src, -1, func(res MatchResult) {
		out = append(out, src[last:res.Span[0]]...)
		out = append(out, re.expand(repl, src, res)...)
		last = res.Span[1]
	})
	out = append(out, src[last:]...)
	return out
}

// ReplaceAllString is ReplaceAll for string arguments.
func (re *Regex) ReplaceAllString(src, repl string) string {
	return string(re.ReplaceAll([]byte(src), []byte(repl)))
}

// expand substitutes $name/$1-style group references in repl using the
// groups captured by res.
func (re *Regex) expand(repl, src []byte, res MatchResult) []byte {
	names := re.pattern.SubexpNames()
	var out []byte
	for i := 0; i < len(repl); i++ {
		if repl[i] != '$' || i+1 >= len(repl) {
			out = append(out, repl[i])
			continue
		}
		rest := string(repl[i+1:])
		name, width := scanGroupRef(rest)
		if width == 0 {
			out = append(out, repl[i])
			continue
		}
		idx := groupIndexFor(name, names)
		if idx >= 0 && idx < len(res.Captures) {
			s, e := res.Captures[idx][0], res.Captures[idx][1]
			if s >= 0 && e >= 0 {
				out = append(out, src[s:e]...)
			}
		}
		i += width
	}
	return out
}

// scanGroupRef parses a "$name"/"${name}"/"$1" reference at the start of s
// (s excludes the leading '$'), returning the referenced name and the
// number of bytes of s it consumed.
func scanGroupRef(s string) (name string, width int) {
	if len(s) == 0 {
		return "", 0
	}
	if s[0] == '{' {
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return "", 0
		}
		return s[1:end], end + 1
	}
	end := 0
	for end < len(s) && (isDigitByte(s[end]) || isIdentByte(s[end])) {
		end++
	}
	if end == 0 {
		return "", 0
	}
	return s[:end], end
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }
func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func groupIndexFor(name string, names []string) int {
	if name == "" {
		return -1
	}
	if isDigitByte(name[0]) {
		n := 0
		for i := 0; i < len(name); i++ {
			if !isDigitByte(name[i]) {
				// "$1x" is a (nonexistent) named reference, not group 1
				// followed by a literal x.
				return -1
			}
			n = n*10 + int(name[i]-'0')
		}
		return n
	}
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}
