package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Validation failures. Rejected synchronously to the caller,
// never persisted, never broadcast.
var (
	ErrInvalidReceiver = fmt.Errorf("receiver is required")
	ErrSelfMessage     = fmt.Errorf("a user cannot send a message to themselves")
	ErrEmptyContent    = fmt.Errorf("message content cannot be empty")
	ErrContentTooLong  = fmt.Errorf("message content cannot be longer than 1000 characters")
)

// Account and authentication failures.
var (
	ErrUnauthorized       = fmt.Errorf("unauthorized")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// ErrPersistence wraps durable-store failures. The send fails, no broadcast
// occurs, and the caller may retry.
var ErrPersistence = fmt.Errorf("persistence failed")

// Runtime failures.
var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")
	ErrConnClosed  = fmt.Errorf("connection closed")
)

// IsValidation reports whether err belongs to the validation taxonomy.
// Validation errors are terminal and local to a single request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidReceiver) ||
		errors.Is(err, ErrSelfMessage) ||
		errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrContentTooLong)
}

// MapToHTTPStatus translates domain sentinels into HTTP status codes for the
// REST collaborator endpoints.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
