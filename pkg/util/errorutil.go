package util

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the ticket queue.
const (
	CodeCapacityExceeded = "CAPACITY_EXCEEDED"
	CodeDuplicateID      = "DUPLICATE_ID"
	CodeNotFound         = "NOT_FOUND"
	CodeForbidden        = "FORBIDDEN"
	CodeConflict         = "CONFLICT"
	CodeStorageFailure   = "STORAGE_FAILURE"
	CodeCorruptSnapshot  = "CORRUPT_SNAPSHOT"
	CodeValidation       = "VALIDATION_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is by Code, so a DomainError
// carrying details or a wrapped cause still matches its sentinel.
var (
	ErrCapacityExceeded = &DomainError{Code: CodeCapacityExceeded, Message: "queue is at capacity"}
	ErrDuplicateID      = &DomainError{Code: CodeDuplicateID, Message: "ticket id already present"}
	ErrNotFound         = &DomainError{Code: CodeNotFound, Message: "not found"}
	ErrForbidden        = &DomainError{Code: CodeForbidden, Message: "insufficient privileges"}
	ErrConflict         = &DomainError{Code: CodeConflict, Message: "conflict"}
	ErrStorage          = &DomainError{Code: CodeStorageFailure, Message: "storage failure"}
	ErrCorruptSnapshot  = &DomainError{Code: CodeCorruptSnapshot, Message: "snapshot is unreadable"}
	ErrValidation       = &DomainError{Code: CodeValidation, Message: "validation failed"}
)

// DomainError standardizes application errors.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, details)
}

func NewCapacityExceeded(limit int) error {
	return NewDomainError(CodeCapacityExceeded, "queue is at capacity", map[string]any{"capacity": limit})
}

func NewDuplicateID(id int64) error {
	return NewDomainError(CodeDuplicateID, fmt.Sprintf("ticket %d already present", id), map[string]any{"id": id})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: details,
	}
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, details)
}

// NewStorageError wraps an I/O failure on the log or snapshot paths.
func NewStorageError(op string, err error) error {
	return &DomainError{
		Code:    CodeStorageFailure,
		Message: op + " failed",
		Err:     err,
	}
}

func NewCorruptSnapshot(err error) error {
	return &DomainError{
		Code:    CodeCorruptSnapshot,
		Message: "snapshot is unreadable",
		Err:     err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// CodeOf returns the DomainError code carried by err, or "" for nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return ToDomainError(err).Code
}
