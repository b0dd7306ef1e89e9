// Package apperr carries the circulation engine's error contract: every
// failure surfaced to a caller is one of a small set of kinds, each mapped
// to an HTTP status and a stable machine-readable code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeValidation          = "VALIDATION"
	CodeNotFound            = "NOT_FOUND"
	CodeConflict            = "CONFLICT"
	CodeIntegrity           = "INTEGRITY"
	CodeQuotaExceeded       = "QUOTA_EXCEEDED"
	CodeInventoryExhausted  = "INVENTORY_EXHAUSTED"
	CodeMembershipInactive  = "MEMBERSHIP_INACTIVE"
	CodeFineLimitExceeded   = "FINE_LIMIT_EXCEEDED"
	CodeDuplicateOpenLoan   = "DUPLICATE_OPEN_LOAN"
	CodeDuplicateHold       = "DUPLICATE_HOLD"
	CodeBookAvailable       = "BOOK_AVAILABLE"
	CodeRenewalNotAllowed   = "RENEWAL_NOT_ALLOWED"
	CodeAlreadyReturned     = "ALREADY_RETURNED"
	CodeForbidden           = "FORBIDDEN"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("app error (%d)", e.Status)
	}
	return "app error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Validation rejects malformed input before any ledger is touched.
func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, CodeValidation, fmt.Errorf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf(format, args...))
}

// Precondition covers business-rule failures (quota exceeded, inventory
// exhausted, duplicate hold, ...). The code distinguishes which rule fired.
func Precondition(code string, format string, args ...any) *Error {
	return New(http.StatusConflict, code, fmt.Errorf(format, args...))
}

// Conflict means a compare-and-swap lost a race. Callers should retry the
// whole operation, never resume mid-protocol.
func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, CodeConflict, fmt.Errorf(format, args...))
}

// Integrity marks states that should be provably unreachable, e.g. a
// negative availability count. Surfaced as fatal, never silently corrected.
func Integrity(format string, args ...any) *Error {
	return New(http.StatusInternalServerError, CodeIntegrity, fmt.Errorf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(http.StatusForbidden, CodeForbidden, fmt.Errorf(format, args...))
}

// CodeOf returns the apperr code wrapped anywhere in err's chain, or "".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// StatusOf returns the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// IsPrecondition reports whether err is any of the precondition-failed kinds.
func IsPrecondition(err error) bool {
	switch CodeOf(err) {
	case CodeQuotaExceeded, CodeInventoryExhausted, CodeMembershipInactive,
		CodeFineLimitExceeded, CodeDuplicateOpenLoan, CodeDuplicateHold,
		CodeBookAvailable, CodeRenewalNotAllowed, CodeAlreadyReturned:
		return true
	}
	return false
}
