package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the single error currency crossing package boundaries in this
// service. Code is an HTTP status code, kept even though the core ledger
// workflows have no HTTP transport of their own, because callers (tests,
// the gin health/metrics surface, future transports) classify failures by it.
type AppError struct {
	Code    int
	Message string
	Err     error
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

// NewBadRequestError represents invalid input or a violated precondition
// (e.g. trip not running, duplicate ticket, seat unavailable).
func NewBadRequestError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// NewValidationError is an alias of NewBadRequestError for request-shape failures.
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: err}
}

// NewNotFoundError represents a missing entity (trip, ticket, route pass, transaction).
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: err}
}

// NewConflictError represents a concurrency conflict (lost row lock race, stale state).
func NewConflictError(message string, err error) *AppError {
	return &AppError{Code: http.StatusConflict, Message: message, Err: err}
}

// NewChargeError represents a payment gateway decline or transport failure.
func NewChargeError(message string, err error) *AppError {
	return &AppError{Code: http.StatusPaymentRequired, Message: message, Err: err}
}

// NewInternalError represents a broken invariant (e.g. zero-sum violation) or
// an unexpected infrastructure failure. These are the ones worth paging on.
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: http.StatusInternalServerError, Message: message, Err: err}
}

// AsAppError unwraps err into an *AppError, wrapping it as an internal error
// with fallbackMessage if it isn't one already.
func AsAppError(err error, fallbackMessage string) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(fallbackMessage, err)
}
