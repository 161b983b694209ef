package command

import (
	"errors"
	"fmt"
)

// ValidationError reports a request that failed shape or lifecycle
// validation. It is an expected, recoverable outcome.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NotFoundError reports that the referenced alert does not exist or is
// soft-deleted.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("alert not found: %s", e.ID)
}

// ConflictError reports a stale optimistic-concurrency version on update.
type ConflictError struct {
	ID              string
	ExpectedVersion int64
	ActualVersion   int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("alert %s was modified concurrently (expected version %d, found %d)",
		e.ID, e.ExpectedVersion, e.ActualVersion)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is a missing-alert failure.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a concurrent-modification failure.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
