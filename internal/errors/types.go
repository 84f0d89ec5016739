// Package errors classifies failures from the agent governance layer so
// callers can map them to distinct user-visible conditions.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Category classifies an error for caller-side handling.
type Category int

const (
	// CategoryInternal - unexpected failures, reported as server errors
	CategoryInternal Category = iota
	// CategoryValidation - bad parameters or unknown task kinds
	CategoryValidation
	// CategoryPolicy - hard business-rule blocks (do-not-contact), never bypassable
	CategoryPolicy
	// CategoryConflict - the execution slot is already held
	CategoryConflict
	// CategoryNotFound - session, frame, or patient does not exist
	CategoryNotFound
	// CategoryState - operation not valid for the session's current status
	CategoryState
)

func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryPolicy:
		return "policy"
	case CategoryConflict:
		return "conflict"
	case CategoryNotFound:
		return "not_found"
	case CategoryState:
		return "state"
	default:
		return "internal"
	}
}

// Error carries a category alongside a human-readable message.
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s error: %v", e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf creates a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Category: CategoryValidation, Message: fmt.Sprintf(format, args...)}
}

// Policyf creates a policy error (forbidden, never bypassable).
func Policyf(format string, args ...any) *Error {
	return &Error{Category: CategoryPolicy, Message: fmt.Sprintf(format, args...)}
}

// Conflictf creates a contention error (execution slot held).
func Conflictf(format string, args ...any) *Error {
	return &Error{Category: CategoryConflict, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Category: CategoryNotFound, Message: fmt.Sprintf(format, args...)}
}

// Statef creates a wrong-status error.
func Statef(format string, args ...any) *Error {
	return &Error{Category: CategoryState, Message: fmt.Sprintf(format, args...)}
}

// CategoryOf classifies err; unrecognized errors are internal.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// Is reports whether err belongs to the given category.
func Is(err error, category Category) bool {
	return err != nil && CategoryOf(err) == category
}

// HTTPStatus maps an error category onto the HTTP boundary.
func HTTPStatus(err error) int {
	switch CategoryOf(err) {
	case CategoryValidation, CategoryState:
		return http.StatusBadRequest
	case CategoryPolicy:
		return http.StatusForbidden
	case CategoryConflict:
		return http.StatusConflict
	case CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
