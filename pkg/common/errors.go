package common

import (
	"errors"
	"net/http"
)

// Sentinel error classes. Every error returned by a service wraps exactly one
// of these, so callers can branch on class without string matching. None of
// them implies a partial write: a request that fails with any of these left
// the ledger and the participation state untouched.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrValidation     = errors.New("validation error")
	ErrPermission     = errors.New("permission denied")
	ErrState          = errors.New("invalid state transition")
	ErrCapacity       = errors.New("capacity error")
	ErrEdit           = errors.New("edit not allowed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInternalServer = errors.New("internal server error")
)

// Machine-readable error codes carried alongside the HTTP status.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodePermissionDenied   = "PERMISSION_DENIED"
	CodeInvalidState       = "INVALID_STATE"
	CodeInsufficientSeats  = "INSUFFICIENT_SEATS"
	CodeInvalidSeatAmount  = "INVALID_SEAT_AMOUNT"
	CodeSeatsBelowReserved = "SEATS_BELOW_RESERVED"
	CodeDuplicateRequest   = "DUPLICATE_REQUEST"
	CodeInternal           = "INTERNAL_ERROR"
)

// AppError is an application error with its HTTP mapping.
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes the sentinel class for errors.Is checks.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError.
func NewAppError(code int, errorCode, message string, err error) *AppError {
	return &AppError{Code: code, ErrorCode: errorCode, Message: message, Err: err}
}

// NewValidationError reports malformed input. Recoverable, no state change.
func NewValidationError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, ErrorCode: CodeValidation, Message: message, Err: ErrValidation}
}

// NewPermissionError reports a caller acting on a resource they do not own.
func NewPermissionError(message string) *AppError {
	return &AppError{Code: http.StatusForbidden, ErrorCode: CodePermissionDenied, Message: message, Err: ErrPermission}
}

// NewStateError reports an illegal lifecycle transition, e.g. deciding a
// non-pending request or cancelling twice.
func NewStateError(message string) *AppError {
	return &AppError{Code: http.StatusConflict, ErrorCode: CodeInvalidState, Message: message, Err: ErrState}
}

// NewCapacityError reports a seat-count violation with a specific code.
func NewCapacityError(errorCode, message string) *AppError {
	return &AppError{Code: http.StatusConflict, ErrorCode: errorCode, Message: message, Err: ErrCapacity}
}

// NewEditError reports a rejected ride edit with a specific code.
func NewEditError(errorCode, message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, ErrorCode: errorCode, Message: message, Err: ErrEdit}
}

// NewNotFoundError reports a missing resource.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, ErrorCode: CodeNotFound, Message: message, Err: ErrNotFound}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, ErrorCode: CodeInternal, Message: message, Err: err}
}
