package domain

import (
	"errors"
	"fmt"
)

// ValidationError reports input the queue refuses. Nothing is changed when
// one is returned, and Message is safe to show to the customer.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrNameRequired = &ValidationError{
		Field:   "name",
		Code:    "name_required",
		Message: "name is required",
	}
	ErrNameTooLong = &ValidationError{
		Field:   "name",
		Code:    "name_too_long",
		Message: fmt.Sprintf("name must be at most %d characters", MaxNameLength),
	}
)

// StorageError wraps a failed load or commit of queue state. The operation
// that returned it was not applied.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStorage reports whether err is, or wraps, a *StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}
