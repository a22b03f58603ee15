package pike

import (
	"errors"
	"fmt"
)

// Sentinel errors a *MatchError wraps, so callers can errors.Is against a
// class of failure, the same Unwrap-able shape as syntax.ParseError.
var (
	ErrTimeout             = errors.New("pike: search exceeded its timeout")
	ErrStateBudgetExceeded = errors.New("pike: search exceeded its state budget")

	// ErrInternal reports a malformed compiler.Program: a pc out of range,
	// an OpLook pointing at a sub-start outside the instruction array, or
	// any other shape Validate should have rejected at build time. A VM
	// never trusts a Program blindly: New validates it up front so a bad
	// pc surfaces here instead of as an out-of-bounds panic mid-search.
	ErrInternal = errors.New("pike: malformed program")
)

// MatchError reports that a search was aborted before it could determine a
// result, e.g. a pathological pattern hitting its Limits.
type MatchError struct {
	Err error
}

func (e *MatchError) Error() string { return fmt.Sprintf("%v", e.Err) }
func (e *MatchError) Unwrap() error { return e.Err }
