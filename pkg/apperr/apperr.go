// Package apperr defines the error kinds surfaced by the loan, debt and wallet
// services. Every kind carries a user-facing description and a severity flag.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation   Kind = "validation"   // bad input, nothing changed, safe to retry after fixing it
	KindConflict     Kind = "conflict"     // wrong state for the transition, re-fetch before retrying
	KindNotFound     Kind = "not_found"
	KindCollaborator Kind = "collaborator" // a ledger write failed and the unit of work was rolled back
	KindInternal     Kind = "internal"
)

const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Error is a typed failure returned by the services.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Severity is "warning" for failures the user can correct and "error" otherwise.
func (e *Error) Severity() string {
	switch e.Kind {
	case KindValidation, KindConflict, KindNotFound:
		return SeverityWarning
	}
	return SeverityError
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Collaborator wraps a failed ledger call.
func Collaborator(err error, format string, args ...any) error {
	return &Error{Kind: KindCollaborator, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Describe returns the description and severity to show a user for err.
func Describe(err error) (string, string) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, e.Severity()
	}
	return "internal error", SeverityError
}
