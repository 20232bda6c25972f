// Package dberrors defines the tagged error kinds surfaced across the
// engine's component boundaries: a single Error struct whose Kind field
// names the category, rather than one struct type per kind.
package dberrors

import "fmt"

// Kind tags an error with one of the fixed recovery categories the runner
// and builders branch on.
type Kind string

const (
	KindNotSupported         Kind = "NOT_SUPPORTED"
	KindUninitialized        Kind = "UNINITIALIZED"
	KindConstraintViolation  Kind = "CONSTRAINT_VIOLATION"
	KindSyntax               Kind = "SYNTAX"
	KindNotFound             Kind = "NOT_FOUND"
	KindTransaction          Kind = "TRANSACTION"
	KindBackStore            Kind = "BACKSTORE"
	KindTaskCancelled        Kind = "TASK_CANCELLED"
)

// Error is the single concrete error type the engine returns; callers
// branch on Kind rather than on sentinel values or type-switches.
type Error struct {
	Kind    Kind
	Message string
	// Cause is the underlying error, if any (e.g. a back-store I/O error).
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, dberrors.New(kind, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NotSupported(message string) *Error { return New(KindNotSupported, message) }

func Uninitialized(message string) *Error { return New(KindUninitialized, message) }

func ConstraintViolation(message string) *Error {
	return New(KindConstraintViolation, message)
}

func Syntax(message string) *Error { return New(KindSyntax, message) }

func NotFound(message string) *Error { return New(KindNotFound, message) }

func Transaction(message string) *Error { return New(KindTransaction, message) }

func BackStore(message string, cause error) *Error {
	return Wrap(KindBackStore, message, cause)
}

func TaskCancelled() *Error {
	return New(KindTaskCancelled, "task was cancelled before it started running")
}

// KindOf extracts the Kind of err if it is (or wraps) a *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	for err != nil {
		if ee, ok := err.(*Error); ok {
			e = ee
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if e == nil {
		return "", false
	}
	return e.Kind, true
}
