package library

import (
	"errors"
	"fmt"
)

// ErrorType classifies every failure the engine returns to callers.
type ErrorType string

const (
	ErrorTypeValidation                ErrorType = "validation_error"
	ErrorTypeNotFound                  ErrorType = "not_found"
	ErrorTypeItemUnavailable           ErrorType = "item_unavailable"
	ErrorTypeMembershipExpired         ErrorType = "membership_expired"
	ErrorTypeBorrowLimitExceeded       ErrorType = "borrow_limit_exceeded"
	ErrorTypeNoActiveBorrow            ErrorType = "no_active_borrow"
	ErrorTypeAlreadyBorrowed           ErrorType = "already_borrowed"
	ErrorTypeDuplicateWaitingListEntry ErrorType = "duplicate_waiting_list_entry"
	ErrorTypeConflict                  ErrorType = "conflict"
	ErrorTypeTimeout                   ErrorType = "timeout"
	ErrorTypeStorageFailure            ErrorType = "storage_failure"
)

// Error is the typed failure returned by every engine operation.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same type, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

var (
	ErrValidation                = &Error{Type: ErrorTypeValidation, Message: "invalid input"}
	ErrNotFound                  = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrItemUnavailable           = &Error{Type: ErrorTypeItemUnavailable, Message: "item unavailable"}
	ErrMembershipExpired         = &Error{Type: ErrorTypeMembershipExpired, Message: "membership expired"}
	ErrBorrowLimitExceeded       = &Error{Type: ErrorTypeBorrowLimitExceeded, Message: "borrow limit exceeded"}
	ErrNoActiveBorrow            = &Error{Type: ErrorTypeNoActiveBorrow, Message: "no active borrow"}
	ErrAlreadyBorrowed           = &Error{Type: ErrorTypeAlreadyBorrowed, Message: "already borrowed"}
	ErrDuplicateWaitingListEntry = &Error{Type: ErrorTypeDuplicateWaitingListEntry, Message: "already on waiting list"}
	ErrConflict                  = &Error{Type: ErrorTypeConflict, Message: "concurrent transaction conflict"}
	ErrTimeout                   = &Error{Type: ErrorTypeTimeout, Message: "deadline exceeded"}
	ErrStorageFailure            = &Error{Type: ErrorTypeStorageFailure, Message: "storage failure"}
)

func newError(t ErrorType, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError creates a validation error with optional details.
func NewValidationError(message string, details ...string) *Error {
	e := &Error{Type: ErrorTypeValidation, Message: message}
	if len(details) > 0 {
		e.Details = details[0]
	}
	return e
}

func notFound(entity string, id int64) *Error {
	return newError(ErrorTypeNotFound, "%s %d not found", entity, id)
}

func storageFailure(op string, err error) *Error {
	return &Error{Type: ErrorTypeStorageFailure, Message: op, Err: err}
}

// TypeOf returns the ErrorType of err, or "" when err is not an engine error.
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

// IsRetryable reports whether the operation may be retried as-is.
func IsRetryable(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeConflict, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}
