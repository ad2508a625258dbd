package common

import (
	"errors"
	"fmt"
)

// ValidationError rejects malformed input before any mutation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError rejects operations that would violate a uniqueness constraint
// (duplicate invoice number, duplicate transaction hash) or a version check
type ConflictError struct {
	Resource string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: %s", e.Resource, e.Reason)
}

// NewConflictError creates a ConflictError
func NewConflictError(resource, reason string) error {
	return &ConflictError{Resource: resource, Reason: reason}
}

// NotFoundError signals a missing invoice, payment record or contact
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

// InvalidOperationError rejects state transitions the invoice lifecycle does
// not permit (verifying a crypto record, generating on an exhausted series,
// stopping an already-stopped recurrence)
type InvalidOperationError struct {
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation %s: %s", e.Op, e.Reason)
}

// NewInvalidOperationError creates an InvalidOperationError
func NewInvalidOperationError(op, reason string) error {
	return &InvalidOperationError{Op: op, Reason: reason}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// IsInvalidOperation reports whether err is an InvalidOperationError
func IsInvalidOperation(err error) bool {
	var ie *InvalidOperationError
	return errors.As(err, &ie)
}

// SecureErrorMessage creates standardized error messages to prevent
// information leakage on persistence failures
func SecureErrorMessage(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: operation could not be completed", operation)
}
