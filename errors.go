package osal

import "fmt"

// Error wraps a Result with a human-readable message, the way the
// teacher's ToStatus turns a host error into a Status code while
// keeping the original context available to the caller (see
// DESIGN.md). Every identity and primitive operation in this module
// returns a *Error (or nil), never a bare Result, so callers can use
// errors.Is against the sentinel Results declared in result.go.
type Error struct {
	Result Result
	Msg    string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Result.String()
	}
	return fmt.Sprintf("%s: %s", e.Result, e.Msg)
}

// Is lets errors.Is(err, SomeResult) work by comparing against a
// *Error carrying that Result, so callers can write
// errors.Is(err, osal.ErrNameTaken) instead of type-asserting.
func (e *Error) Is(target error) bool {
	if r, ok := target.(Result); ok {
		return e.Result == r
	}
	if other, ok := target.(*Error); ok {
		return e.Result == other.Result
	}
	return false
}

// NewError builds a *Error. Most OSAL entry points call this directly
// rather than allocating Error literals, mirroring the teacher's single
// ToStatus choke point for error construction.
func NewError(r Result, msg string) *Error {
	return &Error{Result: r, Msg: msg}
}

// ResultOf unwraps err back to a Result, returning Success for a nil
// error and ErrGeneric for any error that isn't an *Error (e.g. one
// returned by a host binding this core doesn't own).
func ResultOf(err error) Result {
	if err == nil {
		return Success
	}
	if e, ok := err.(*Error); ok {
		return e.Result
	}
	return ErrGeneric
}
