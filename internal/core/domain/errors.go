package domain

import (
	"errors"
	"net/http"
)

// Error codes exposed in the response envelope
const (
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeValidation       = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeServerError      = "SERVER_ERROR"
)

// Error is a failure with a public code, HTTP status and message.
// Any Error matches its kind sentinel (ErrValidation, ErrConflict, ...) under
// errors.Is; other Errors match by identity only.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error

	kind bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind sentinel for e's code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind && t.Code == e.Code
}

// Wrap returns a copy of e carrying cause for logging
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	cp.kind = false
	return &cp
}

// Sentinel kinds, compare with errors.Is
var (
	ErrMethodNotAllowed = &Error{Code: CodeMethodNotAllowed, Status: http.StatusMethodNotAllowed, Message: "Method not allowed", kind: true}
	ErrUnauthorized     = &Error{Code: CodeUnauthorized, Status: http.StatusUnauthorized, Message: "Unauthorized", kind: true}
	ErrForbidden        = &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: "Forbidden", kind: true}
	ErrAccountLocked    = &Error{Code: CodeAccountLocked, Status: http.StatusForbidden, Message: "Account is locked. Please contact compliance.", kind: true}
	ErrValidation       = &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: "Validation failed", kind: true}
	ErrNotFound         = &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: "Not found", kind: true}
	ErrConflict         = &Error{Code: CodeConflict, Status: http.StatusConflict, Message: "Conflict", kind: true}
	ErrServer           = &Error{Code: CodeServerError, Status: http.StatusInternalServerError, Message: "Internal server error", kind: true}
)

// Common failures
var (
	ErrMissingToken       = Unauthorized("Missing token")
	ErrInvalidToken       = Unauthorized("Invalid or expired token")
	ErrInvalidCredentials = Unauthorized("Invalid email or password.")
	ErrFinalizedLoan      = Validation("Cannot edit a finalized application.")
	ErrActiveLoanExists   = Conflict("You already have an active application")
	ErrEmailTaken         = Conflict("Email already exists")
	ErrLoanNotFound       = NotFound("Loan not found")
	ErrUserNotFound       = NotFound("User not found")
	ErrIncomeUnavailable  = NotFound("Income data not available")
)

func newError(kind *Error, msg string) *Error {
	return &Error{Code: kind.Code, Status: kind.Status, Message: msg}
}

// Unauthorized builds a 401 with msg
func Unauthorized(msg string) *Error { return newError(ErrUnauthorized, msg) }

// Forbidden builds a 403 with msg
func Forbidden(msg string) *Error { return newError(ErrForbidden, msg) }

// Validation builds a 400 with msg
func Validation(msg string) *Error { return newError(ErrValidation, msg) }

// NotFound builds a 404 with msg
func NotFound(msg string) *Error { return newError(ErrNotFound, msg) }

// Conflict builds a 409 with msg
func Conflict(msg string) *Error { return newError(ErrConflict, msg) }

// MethodNotAllowed builds a 405 for method
func MethodNotAllowed(method string) *Error {
	return newError(ErrMethodNotAllowed, "Method "+method+" not allowed")
}

// AsError extracts a *Error from err
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
