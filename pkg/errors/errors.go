package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode represents a unique error code
type ErrorCode int

// FieldError describes a single failed field constraint
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError represents an application error
type AppError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
	Err     error        `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode maps the error code to an HTTP status
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrValidation:
		return http.StatusUnprocessableEntity
	case ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrDataIntegrity
	ErrConflict
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewValidation reports one or more failed field constraints.
func NewValidation(entity string, fields []FieldError) *AppError {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Field)
	}
	return &AppError{
		Code:    ErrValidation,
		Message: fmt.Sprintf("invalid %s: %s", entity, strings.Join(names, ", ")),
		Fields:  fields,
	}
}

// NewDataIntegrity reports stored data that violates a structural invariant.
// It must be surfaced, never approximated.
func NewDataIntegrity(message string, err error) *AppError {
	return &AppError{
		Code:    ErrDataIntegrity,
		Message: message,
		Err:     err,
	}
}

func NewConflict(message string, err error) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// HasCode reports whether err wraps an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// FileCleanupError is returned when a record was deleted but one or more of
// its stored files could not be removed. The deletion itself is committed.
type FileCleanupError struct {
	Paths []string
	Err   error
}

func (e *FileCleanupError) Error() string {
	return fmt.Sprintf("failed to remove stored files %s: %v", strings.Join(e.Paths, ", "), e.Err)
}

func (e *FileCleanupError) Unwrap() error {
	return e.Err
}

// IsFileCleanup reports whether err is a non-fatal file cleanup failure.
func IsFileCleanup(err error) bool {
	var fcErr *FileCleanupError
	return stderrors.As(err, &fcErr)
}

// AsFileCleanup returns the file cleanup failure wrapped in err, if any.
func AsFileCleanup(err error) (*FileCleanupError, bool) {
	var fcErr *FileCleanupError
	ok := stderrors.As(err, &fcErr)
	return fcErr, ok
}

// AsAppError returns the AppError wrapped in err, if any.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := stderrors.As(err, &appErr)
	return appErr, ok
}
