package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrConflict reports that a concurrent writer changed the record between
	// read and conditional write.
	ErrConflict = errors.New("concurrent modification")
)

// ValidationError reports a missing or malformed caller-supplied field.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %q: %w", entity, id, ErrNotFound)
}

// InvalidTransition wraps ErrInvalidTransition with the attempted edge.
func InvalidTransition(entity, from, to string) error {
	return fmt.Errorf("%s cannot move from %s to %s: %w", entity, from, to, ErrInvalidTransition)
}

// StoreError marks a failure of the durable store. Its message is for logs
// only; callers surface a generic failure.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// WrapStore wraps err as a StoreError unless it is nil or a domain error the
// store is allowed to return.
func WrapStore(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || IsValidation(err) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// IsStore reports whether err originated in the durable store.
func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
