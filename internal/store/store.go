package store

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	ErrStorage    = errors.New("storage failure")
	ErrValidation = errors.New("validation failed")

	// ErrNotRegistered reports a webhook id that was never issued.
	ErrNotRegistered = errors.New("webhook id is not registered")
)

// StorageError reports a failed backend operation or a stored value that
// could not be decoded. It matches ErrStorage with errors.Is.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// ValidationError reports a malformed identity component. No mutation happens
// when it is returned. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func storageError(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
