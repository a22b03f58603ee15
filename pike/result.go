package pike

// MatchResult is the outcome of one VM.Find call.
type MatchResult struct {
	Matched  bool
	Captures []int // [start0, end0, start1, end1, ...]; -1 means unset.
}

// Group returns the [start, end) byte offsets of capture group i (0 is the
// whole match). ok is false if the group didn't participate in the match
// (e.g. an alternative branch that wasn't taken).
func (m *MatchResult) Group(i int) (start, end int, ok bool) {
	if m == nil || !m.Matched {
		return -1, -1, false
	}
	lo, hi := 2*i, 2*i+1
	if lo < 0 || hi >= len(m.Captures) {
		return -1, -1, false
	}
	start, end = m.Captures[lo], m.Captures[hi]
	return start, end, start >= 0 && end >= 0
}

// NumGroups returns the number of capture groups, including group 0.
func (m *MatchResult) NumGroups() int {
	if m == nil {
		return 0
	}
	return len(m.Captures) / 2
}
