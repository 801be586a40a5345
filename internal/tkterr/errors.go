// Package tkterr defines the error taxonomy shared by every tkt component.
//
// All operations return a *Error (possibly wrapped) rather than signalling
// failure through side channels. The CLI layer maps each Code to a distinct
// process exit code so that scripts can dispatch on failure kind.
package tkterr

import (
	"errors"
	"fmt"
)

// Code categorizes an error for exit-code mapping and machine dispatch.
type Code string

const (
	// CodeInvalidArg indicates malformed direct input: a missing required
	// field, an unparseable record used as input, a bad flag value.
	CodeInvalidArg Code = "INVALID_ARG"

	// CodeNotFound indicates a referenced ticket identifier is absent.
	CodeNotFound Code = "NOT_FOUND"

	// CodeValidation indicates an enum or shape violation: unknown priority,
	// dependency on a non-task, empty reject reason.
	CodeValidation Code = "VALIDATION"

	// CodeState indicates the operation is invalid for the ticket's current
	// status, e.g. accepting a ticket that is not done.
	CodeState Code = "STATE"

	// CodeDependency indicates a delete blocked by existing dependents.
	CodeDependency Code = "DEPENDENCY"

	// CodeDuplicate indicates a duplicate dependency within a single call.
	CodeDuplicate Code = "DUPLICATE"

	// CodeOverflow indicates a fixed-capacity result or field was exceeded.
	// Results are never silently truncated.
	CodeOverflow Code = "OVERFLOW"

	// CodeStorage indicates a cache or log access failure.
	CodeStorage Code = "STORAGE"
)

// Error is a categorized error with optional ticket context.
type Error struct {
	Code    Code
	Message string
	ID      string // affected ticket id, if any
	Err     error  // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.ID != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s (id=%s): %v", e.Code, e.Message, e.ID, e.Err)
	case e.ID != "":
		return fmt.Sprintf("%s: %s (id=%s)", e.Code, e.Message, e.ID)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewID creates an Error carrying the affected ticket id.
func NewID(code Code, id, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), ID: id}
}

// Wrap creates an Error wrapping an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// CodeOf extracts the taxonomy code from an error chain.
// Returns ok=false if no *Error is present in the chain.
func CodeOf(err error) (Code, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return "", false
}

// Is reports whether the error chain contains an *Error with the given code.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Exit codes. Zero is success; 1 is a generic failure; 2 is a command-level
// error (bad paths, unreadable workspace). Each taxonomy code gets its own
// code above that.
const (
	ExitSuccess      = 0
	ExitFailure      = 1
	ExitCommandError = 2
)

var exitCodes = map[Code]int{
	CodeInvalidArg: 3,
	CodeNotFound:   4,
	CodeValidation: 5,
	CodeState:      6,
	CodeDependency: 7,
	CodeDuplicate:  8,
	CodeOverflow:   9,
	CodeStorage:    10,
}

// ExitCode returns the process exit code for an error.
// nil maps to ExitSuccess; errors outside the taxonomy map to ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	if code, ok := CodeOf(err); ok {
		if ec, ok := exitCodes[code]; ok {
			return ec
		}
	}
	return ExitFailure
}
