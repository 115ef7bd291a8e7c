// Package booking holds the store-independent rules of the reservation
// core: error taxonomy, the lifecycle transition table, the conflict
// detector, the opening-hours gate and the availability index.
package booking

import (
	"errors"
	"fmt"
)

// Error codes shared by services and handlers.
const (
	CodeValidation          = "VALIDATION"
	CodeConflict            = "CONFLICT"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidState        = "INVALID_STATE"
	CodeForbidden           = "FORBIDDEN"
	CodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	CodeNoActivePackage     = "NO_ACTIVE_PACKAGE"
	CodeLedgerInconsistent  = "LEDGER_INCONSISTENT"
)

// Error is a domain error carrying a stable code and a human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same code, so errors.Is(err,
// ErrConflict) holds for every conflict regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation          = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrConflict            = &Error{Code: CodeConflict, Message: "conflict"}
	ErrNotFound            = &Error{Code: CodeNotFound, Message: "not found"}
	ErrInvalidState        = &Error{Code: CodeInvalidState, Message: "operation not allowed in current state"}
	ErrForbidden           = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrInsufficientCredits = &Error{Code: CodeInsufficientCredits, Message: "insufficient credits"}
	ErrNoActivePackage     = &Error{Code: CodeNoActivePackage, Message: "no active package"}
	ErrLedgerInconsistent  = &Error{Code: CodeLedgerInconsistent, Message: "credit ledger inconsistent"}
)

func newError(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation reports a malformed request; nothing was persisted.
func Validation(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

// Conflict reports a business rejection such as an overlapping slot.
func Conflict(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

// NotFound reports an unknown id.
func NotFound(format string, args ...any) *Error {
	return newError(CodeNotFound, format, args...)
}

// InvalidState reports a lifecycle precondition failure.
func InvalidState(format string, args ...any) *Error {
	return newError(CodeInvalidState, format, args...)
}

// Forbidden reports an access to another tenant's data.
func Forbidden(format string, args ...any) *Error {
	return newError(CodeForbidden, format, args...)
}

// CodeOf returns the code of a domain error, or "" for other errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
