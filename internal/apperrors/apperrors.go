// Package apperrors defines the domain error kinds and the central mapping
// from infrastructure errors. Handlers translate these to HTTP statuses or
// WebSocket close codes; services stay transport-agnostic.
package apperrors

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound: referenced profile/match/message absent. Never fatal.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: rejected operation, e.g. messaging without an active match.
	ErrInvalidState = errors.New("invalid state")
	// ErrValidation: malformed input from the caller.
	ErrValidation = errors.New("validation failed")
	// ErrConflict: concurrent duplicate creation. Usually resolved internally.
	ErrConflict = errors.New("conflict")
	// ErrTimeout: persistence or fan-out exceeded its bound. Retryable.
	ErrTimeout = errors.New("timed out")
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string { return e.Message }
func (e *AppError) Unwrap() error { return e.Err }

func NotFound(resource string, id any) *AppError {
	return &AppError{Err: ErrNotFound, Message: fmt.Sprintf("%s not found: %v", resource, id)}
}

func InvalidState(msg string) *AppError {
	return &AppError{Err: ErrInvalidState, Message: msg}
}

func Validation(msg string) *AppError {
	return &AppError{Err: ErrValidation, Message: msg}
}

func Conflict(msg string) *AppError {
	return &AppError{Err: ErrConflict, Message: msg}
}

func Timeout(msg string) *AppError {
	return &AppError{Err: ErrTimeout, Message: msg}
}

// Map converts repo/infra errors into domain error kinds.
// Keeps the service layer clean by centralizing the translation.
func Map(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &AppError{Err: ErrNotFound, Message: "record not found"}

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &AppError{Err: ErrConflict, Message: "record already exists"}

	case errors.Is(err, context.DeadlineExceeded):
		return &AppError{Err: ErrTimeout, Message: "request timed out"}

	case errors.Is(err, context.Canceled):
		return &AppError{Err: ErrTimeout, Message: "request was canceled"}

	default:
		return err
	}
}
