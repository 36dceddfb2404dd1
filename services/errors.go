package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a referenced quiz, question or attempt does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for a duplicate attempt or a concurrent-edit version mismatch.
	// It is a terminal business outcome, never retried by the core.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials is returned when login fails; it deliberately does not
	// reveal whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError reports input that is malformed or violates an authoring or
// submission invariant. Rule names the failing rule so callers can surface it
// verbatim.
type ValidationError struct {
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

func validationErr(rule, format string, args ...any) *ValidationError {
	return &ValidationError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps a transport or transaction failure from the store. It is
// propagated opaquely; callers may retry with backoff.
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

// translateDBError maps GORM errors onto the service taxonomy. Unique-index
// violations arrive as gorm.ErrDuplicatedKey because the dialector is opened
// with TranslateError enabled.
func translateDBError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrConflict
	default:
		return &StorageError{Op: op, Err: err}
	}
}
