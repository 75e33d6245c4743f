package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Callers classify with
// errors.Is and map to transport responses in the API layer.
var (
	// ErrNotFound indicates an unknown merchant, configuration version, or
	// other entity. No side effects are performed.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates an operation that is not legal for the
	// entity's current state, e.g. resolving an already-resolved alert.
	ErrInvalidState = errors.New("invalid state")

	// ErrConcurrencyConflict indicates a configuration update lost its race
	// against a concurrent writer and exhausted its retries.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
)

// ValidationError reports a malformed snapshot or configuration patch.
// Nothing is recorded or persisted when validation fails.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a named field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError reports a durability failure on an audit, configuration, or
// assessment write. Audit writes are a compliance requirement and must never
// be silently dropped, so these surface to the caller as fatal.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps a low-level storage failure with the failed operation.
func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
