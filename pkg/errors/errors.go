package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error
type Kind int

// Error kinds
const (
	KindInternal Kind = iota
	KindConstraintViolation
	KindNotFound
	KindStoreFailure
	KindBadRequest
	KindUnauthorized
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindConstraintViolation:
		return "constraint_violation"
	case KindNotFound:
		return "not_found"
	case KindStoreFailure:
		return "store_failure"
	case KindBadRequest:
		return "bad_request"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"-"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status code
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindConstraintViolation, KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ConstraintViolation keeps the driver message so callers see why the row was rejected.
func ConstraintViolation(err error) *AppError {
	return &AppError{
		Kind:    KindConstraintViolation,
		Message: err.Error(),
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

// StoreFailure passes the storage engine message through unchanged.
func StoreFailure(err error) *AppError {
	return &AppError{
		Kind:    KindStoreFailure,
		Message: err.Error(),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Kind:    KindBadRequest,
		Message: message,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Message: message,
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Kind:    KindForbidden,
		Message: message,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err's chain holds an AppError of the given kind
func Is(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

// StatusOf returns the HTTP status and client message for any error.
// Errors outside the taxonomy are reported as store failures with their message.
func StatusOf(err error) (int, string) {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus(), appErr.Message
	}
	return http.StatusInternalServerError, err.Error()
}
