// Package pike executes a compiler.Program with a Pike VM: a simultaneous-
// state NFA simulation that advances every live thread in lockstep, one
// decoded rune per step, across the input. Because a "seen" set caps the
// simulation at one thread per (pc, position) pair, total work is bounded by
// O(len(program) x len(input)) regardless of the pattern, the property that
// makes classically catastrophic patterns like (a+)+b harmless here.
package pike

import (
	"time"
	"unicode/utf8"

	"github.com/coregx/relin/compiler"
	"github.com/coregx/relin/internal/sparse"
)

// Limits bounds one search so a pathological pattern can only ever degrade
// gracefully instead of hanging the caller.
type Limits struct {
	// Timeout aborts the search with ErrTimeout once exceeded. Zero means
	// no deadline.
	Timeout time.Duration

	// StateBudget caps the total number of epsilon-closure steps (across
	// the whole search, including every lookahead probe) before aborting
	// with ErrStateBudgetExceeded. Zero means no cap.
	StateBudget int64

	// Longest switches from leftmost-first (Perl/RE2-default) to
	// leftmost-longest (POSIX) matching: among threads sharing the
	// earliest start position, the one with the longest overall match
	// wins instead of the highest split-priority one.
	Longest bool
}

// VM executes one compiled Program. It is not safe for concurrent use by
// multiple goroutines (its thread-list and sparse-set scratch space is
// reused across calls); callers that need concurrent execution of the same
// Program should construct one VM per goroutine.
type VM struct {
	prog *compiler.Program

	queue, nextQueue []thread

	// seen.Set1 is the per-position dedup set for the main search;
	// seen.Set2 is the base probe set lent out by borrowLookSet.
	seen   *sparse.SparseSets
	setCap uint32

	// lookSetFree holds probe sets available for lookahead sub-searches.
	// A lookahead body may itself contain a lookahead, and each in-flight
	// probe needs its own set: clearing a shared one mid-closure would
	// wipe the outer probe's dedup marks and break its termination bound.
	lookSetFree []*sparse.SparseSet

	// stackPool lends out the scratch worklist addThread uses for its
	// epsilon-closure. A lookahead probe (OpLook) calls addThread again
	// while the outer call's worklist is still live, so each live call
	// needs its own backing array rather than all sharing one slice reset
	// to length zero. The pool hands out a free one and reclaims it on
	// return instead of allocating fresh on every nested call.
	stackPool [][]thread

	progErr error
}

// thread is one live execution point: an instruction and the capture
// offsets recorded so far. The whole-match start needs no dedicated field:
// it is capture slot 0, recorded by the OpSave the compiler wraps every
// program in.
type thread struct {
	pc       compiler.PC
	captures cowCaptures
}

// New creates a VM for prog. prog is validated up front: a compiler.Program
// is normally well-formed because compiler.Builder.Build already calls its
// own Validate, but a VM is a public entry point in its own right and must
// not assume that: a hand-built or corrupted Program surfaces as ErrInternal
// from Find instead of an out-of-bounds panic mid-search.
func New(prog *compiler.Program) *VM {
	capacity := uint32(len(prog.Insts))
	if capacity < 16 {
		capacity = 16
	}
	vm := &VM{
		prog:      prog,
		queue:     make([]thread, 0, capacity),
		nextQueue: make([]thread, 0, capacity),
		seen:      sparse.NewSparseSets(capacity),
		setCap:    capacity,
	}
	vm.lookSetFree = []*sparse.SparseSet{vm.seen.Set2}
	vm.progErr = validateProgram(prog)
	return vm
}

// validateProgram checks prog's referential integrity: every instruction
// that continues somewhere has an in-bounds successor (the VM follows Next
// unconditionally, so a leftover InvalidPC is as fatal as a wild pc), every
// split/look target and class index is in range, and the declared entry
// points are in bounds. Mirrors compiler.Builder.Validate, run again on the
// executor side since a VM can't assume the Program it was handed came from
// that Builder.
func validateProgram(prog *compiler.Program) error {
	n := compiler.PC(len(prog.Insts))
	inBounds := func(pc compiler.PC) bool { return pc >= 0 && pc < n }

	if !inBounds(prog.StartAnchored) || !inBounds(prog.StartUnanchored) {
		return ErrInternal
	}
	for _, inst := range prog.Insts {
		switch inst.Op {
		case compiler.OpChar, compiler.OpClass, compiler.OpAny, compiler.OpAnyNoNL,
			compiler.OpJmp, compiler.OpSave, compiler.OpAssert:
			if !inBounds(inst.Next) {
				return ErrInternal
			}
		case compiler.OpSplit:
			if !inBounds(inst.X) || !inBounds(inst.Y) {
				return ErrInternal
			}
		case compiler.OpLook:
			if !inBounds(inst.SubStart) || !inBounds(inst.Next) {
				return ErrInternal
			}
		case compiler.OpMatch, compiler.OpLookMatch:
			// terminal, no outgoing pc to check
		}
		if inst.Op == compiler.OpClass && (inst.ClassIdx < 0 || inst.ClassIdx >= len(prog.Classes)) {
			return ErrInternal
		}
	}
	return nil
}

func (vm *VM) newCaptures() cowCaptures {
	n := vm.prog.NumCaptures * 2
	if n == 0 {
		return cowCaptures{}
	}
	data := make([]int, n)
	for i := range data {
		data[i] = -1
	}
	return cowCaptures{shared: &sharedCaptures{data: data, refs: 1}}
}

// Find runs a search over input starting no earlier than startPos, honoring
// the program's anchoring, and returns the best match under leftmost-first
// priority (the first thread, in split-priority order, to reach OpMatch),
// or under leftmost-longest when limits.Longest is set.
func (vm *VM) Find(input string, startPos int, limits Limits) (*MatchResult, error) {
	if vm.progErr != nil {
		return nil, &MatchError{Err: vm.progErr}
	}

	var deadline time.Time
	if limits.Timeout > 0 {
		deadline = time.Now().Add(limits.Timeout)
	}
	steps := new(int64)

	clist := vm.queue[:0]
	nlist := vm.nextQueue[:0]
	visited := vm.seen.Set1
	visited.Clear()

	var best *MatchResult
	anchored := vm.prog.AnchoredStart

	pos := startPos
	for {
		if best == nil && (pos == startPos || !anchored) {
			t := thread{pc: vm.prog.StartAnchored, captures: vm.newCaptures()}
			var err error
			clist, err = vm.addThread(clist, t, input, pos, visited, steps, limits, deadline)
			if err != nil {
				return nil, err
			}
		}

		r, size := decodeRuneAt(input, pos)
		atEnd := pos >= len(input)

		nlist = nlist[:0]
		visited.Clear()

		for _, t := range clist {
			if err := checkBudget(steps, limits, deadline); err != nil {
				return nil, err
			}
			inst := vm.prog.Insts[t.pc]
			switch inst.Op {
			case compiler.OpMatch:
				if limits.Longest {
					// POSIX mode: keep every other thread at this position
					// alive too, since a lower-priority one may still grow
					// into a longer match sharing the same (or an earlier)
					// start.
					if best == nil || longerMatch(t.captures, best) {
						best = &MatchResult{Matched: true, Captures: t.captures.copyData()}
					}
					continue
				}
				best = &MatchResult{Matched: true, Captures: t.captures.copyData()}
				// Leftmost-first: every thread still in clist after this one
				// is strictly lower priority and cannot improve on best.
				clist = clist[:0]
				goto stepDone
			case compiler.OpChar, compiler.OpClass, compiler.OpAny, compiler.OpAnyNoNL:
				if !atEnd && instMatchesRune(vm.prog, inst, r) {
					var err error
					nlist, err = vm.addThread(nlist, thread{pc: inst.Next, captures: t.captures}, input, pos+size, visited, steps, limits, deadline)
					if err != nil {
						return nil, err
					}
				}
			}
		}
	stepDone:

		if atEnd {
			break
		}
		clist, nlist = nlist, clist
		pos += size

		if len(clist) == 0 {
			if best != nil || anchored {
				break
			}
		}
	}

	vm.queue, vm.nextQueue = clist[:0], nlist[:0]

	if best == nil {
		return &MatchResult{Matched: false}, nil
	}
	return best, nil
}

// addThread performs the epsilon-closure from (pc, caps) at input position
// pos, appending every consuming or terminal instruction reached to list.
// visited suppresses re-entering a pc already explored at this position,
// which is what keeps the whole search at one thread per (pc, position)
// pair.
//
// This is an explicit worklist loop, not Go-stack recursion through
// OpJmp/OpSplit/OpSave/OpAssert/OpLook: a long chain of epsilon transitions
// with no consuming instruction between them (e.g. a{0,900000}'s unrolled
// Split chain, where each Split's skip edge falls straight into the next
// Split) must not nest a Go stack frame per link. The worklist itself is
// lent from vm.stackPool to stay allocation-free on the hot path the way
// vm.queue/nextQueue already are.
//
// pending holds the closure frontier in DFS order: Split's X arm is pushed
// last so it pops (and therefore fully expands) before the Y arm, which is
// what makes split priority an ordering on the output list.
func (vm *VM) addThread(list []thread, t thread, input string, pos int, visited *sparse.SparseSet, steps *int64, limits Limits, deadline time.Time) ([]thread, error) {
	pending := vm.borrowStack(t)
	defer func() { vm.releaseStack(pending) }()

	for len(pending) > 0 {
		cur := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		if visited.Contains(uint32(cur.pc)) {
			continue
		}
		visited.Insert(uint32(cur.pc))

		*steps++
		if err := checkBudget(steps, limits, deadline); err != nil {
			return nil, err
		}

		inst := vm.prog.Insts[cur.pc]
		switch inst.Op {
		case compiler.OpJmp:
			pending = append(pending, thread{pc: inst.Next, captures: cur.captures})
		case compiler.OpSplit:
			pending = append(pending,
				thread{pc: inst.Y, captures: cur.captures},
				thread{pc: inst.X, captures: cur.captures.clone()},
			)
		case compiler.OpSave:
			newCaps := cur.captures.update(inst.Slot, pos)
			pending = append(pending, thread{pc: inst.Next, captures: newCaps})
		case compiler.OpAssert:
			if assertHolds(inst.Anchor, input, pos) {
				pending = append(pending, thread{pc: inst.Next, captures: cur.captures})
			}
		case compiler.OpLook:
			ok, err := vm.lookaheadMatches(inst.SubStart, input, pos, steps, limits, deadline)
			if err != nil {
				return nil, err
			}
			if ok != inst.Negate {
				pending = append(pending, thread{pc: inst.Next, captures: cur.captures})
			}
		default:
			// OpChar, OpClass, OpAny, OpAnyNoNL, OpMatch, OpLookMatch: terminal
			// for this closure; the caller decides what to do with it.
			list = append(list, cur)
		}
	}
	return list, nil
}

// borrowStack hands addThread a worklist slice to start its closure from,
// reusing one returned by a prior, now-finished call where possible.
func (vm *VM) borrowStack(t thread) []thread {
	if n := len(vm.stackPool); n > 0 {
		s := vm.stackPool[n-1]
		vm.stackPool = vm.stackPool[:n-1]
		return append(s[:0], t)
	}
	return []thread{t}
}

// releaseStack returns a drained worklist slice to the pool for reuse.
func (vm *VM) releaseStack(s []thread) {
	vm.stackPool = append(vm.stackPool, s[:0])
}

// borrowLookSet hands a lookahead probe its own dedup set, reusing a free
// one where possible.
func (vm *VM) borrowLookSet() *sparse.SparseSet {
	if n := len(vm.lookSetFree); n > 0 {
		s := vm.lookSetFree[n-1]
		vm.lookSetFree = vm.lookSetFree[:n-1]
		return s
	}
	return sparse.NewSparseSet(vm.setCap)
}

// releaseLookSet returns a probe set to the free list.
func (vm *VM) releaseLookSet(s *sparse.SparseSet) {
	vm.lookSetFree = append(vm.lookSetFree, s)
}

// lookaheadMatches reports whether the sub-program rooted at subStart (a
// (?=...)/(?!...) body, terminated by OpLookMatch instead of OpMatch) has a
// match anchored exactly at pos. It shares the outer search's step budget
// and deadline so a pathological lookahead body cannot escape the overall
// bound, but uses its own thread list and dedup set so it doesn't disturb
// the outer closure in progress.
func (vm *VM) lookaheadMatches(subStart compiler.PC, input string, pos int, steps *int64, limits Limits, deadline time.Time) (bool, error) {
	visited := vm.borrowLookSet()
	defer vm.releaseLookSet(visited)

	visited.Clear()
	list, err := vm.addThread(nil, thread{pc: subStart}, input, pos, visited, steps, limits, deadline)
	if err != nil {
		return false, err
	}

	cur := pos
	for {
		for _, t := range list {
			if vm.prog.Insts[t.pc].Op == compiler.OpLookMatch {
				return true, nil
			}
		}
		if cur >= len(input) {
			return false, nil
		}
		r, size := decodeRuneAt(input, cur)

		var next []thread
		visited.Clear()
		for _, t := range list {
			if err := checkBudget(steps, limits, deadline); err != nil {
				return false, err
			}
			inst := vm.prog.Insts[t.pc]
			switch inst.Op {
			case compiler.OpChar, compiler.OpClass, compiler.OpAny, compiler.OpAnyNoNL:
				if instMatchesRune(vm.prog, inst, r) {
					next, err = vm.addThread(next, thread{pc: inst.Next}, input, cur+size, visited, steps, limits, deadline)
					if err != nil {
						return false, err
					}
				}
			}
		}
		if len(next) == 0 {
			return false, nil
		}
		list = next
		cur += size
	}
}

// longerMatch reports whether candidate (captures for slots 0/1 = whole
// match span) beats the current best under POSIX leftmost-longest rules: an
// earlier start wins outright, and among equal starts a longer end wins.
func longerMatch(candidate cowCaptures, best *MatchResult) bool {
	if candidate.shared == nil || len(candidate.shared.data) < 2 {
		return false
	}
	cStart, cEnd := candidate.shared.data[0], candidate.shared.data[1]
	bStart, bEnd, ok := best.Group(0)
	if !ok {
		return true
	}
	if cStart != bStart {
		return cStart < bStart
	}
	return cEnd > bEnd
}

func checkBudget(steps *int64, limits Limits, deadline time.Time) error {
	if limits.StateBudget > 0 && *steps > limits.StateBudget {
		return &MatchError{Err: ErrStateBudgetExceeded}
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return &MatchError{Err: ErrTimeout}
	}
	return nil
}

// decodeRuneAt decodes one rune from input at pos. Malformed UTF-8 yields
// (utf8.RuneError, 1): the bad byte is consumed as U+FFFD rather than
// treated as an error, which is exactly utf8.DecodeRuneInString's own
// behavior for a bad lead byte. At end of input it returns size 0.
func decodeRuneAt(input string, pos int) (rune, int) {
	if pos >= len(input) {
		return utf8.RuneError, 0
	}
	return utf8.DecodeRuneInString(input[pos:])
}

func instMatchesRune(prog *compiler.Program, inst compiler.Inst, r rune) bool {
	switch inst.Op {
	case compiler.OpChar:
		return inst.Rune == r
	case compiler.OpClass:
		return classContains(prog.Classes[inst.ClassIdx], r)
	case compiler.OpAny:
		return true
	case compiler.OpAnyNoNL:
		return r != '\n'
	default:
		return false
	}
}

func classContains(ranges []compiler.RuneRange, r rune) bool {
	lo, hi := 0, len(ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		rr := ranges[mid]
		switch {
		case r < rr.Lo:
			hi = mid
		case r > rr.Hi:
			lo = mid + 1
		default:
			return true
		}
	}
	return false
}

// assertHolds evaluates a zero-width assertion at pos. Word-boundary checks
// are byte-level and ASCII-only, matching RE2's default \b definition: a
// multi-byte UTF-8 lead or continuation byte is never itself a "word" byte,
// so no backward rune decoding is needed to find the previous character's
// word-ness.
func assertHolds(anchor compiler.AnchorKind, input string, pos int) bool {
	switch anchor {
	case compiler.AnchorBeginText:
		return pos == 0
	case compiler.AnchorEndText:
		return pos == len(input)
	case compiler.AnchorBeginLine:
		return pos == 0 || input[pos-1] == '\n'
	case compiler.AnchorEndLine:
		return pos == len(input) || input[pos] == '\n'
	case compiler.AnchorWordBoundary:
		return wordBefore(input, pos) != wordAfter(input, pos)
	case compiler.AnchorNoWordBoundary:
		return wordBefore(input, pos) == wordAfter(input, pos)
	default:
		return false
	}
}

func wordBefore(input string, pos int) bool {
	if pos <= 0 {
		return false
	}
	return isWordByte(input[pos-1])
}

func wordAfter(input string, pos int) bool {
	if pos >= len(input) {
		return false
	}
	return isWordByte(input[pos])
}

func isWordByte(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '_'
}
