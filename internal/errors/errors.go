package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/lectern/internal/logger"
)

// Sentinel kinds surfaced by the store. Callers match them with errors.Is.
var (
	// ErrConstraintViolation is a dangling or invalid foreign key.
	ErrConstraintViolation = stderrors.New("constraint violation")
	// ErrSingletonViolation is a second insert into, or a delete from, a singleton table.
	ErrSingletonViolation = stderrors.New("singleton violation")
	// ErrInvariantViolation is a broken template/instance exclusivity or a reversed one-way flag.
	ErrInvariantViolation = stderrors.New("invariant violation")
	// ErrNotFound is a lookup of a missing id.
	ErrNotFound = stderrors.New("not found")
	// ErrMalformedRule is an unparsable recurrence rule string.
	ErrMalformedRule = stderrors.New("malformed recurrence rule")
	// ErrValidation is a field that fails a shape check before any constraint is consulted.
	ErrValidation = stderrors.New("validation failed")
)

// StoreError carries the entity and row a failure refers to.
type StoreError struct {
	Kind   error
	Entity string
	ID     int64
	Detail string
}

func (e *StoreError) Error() string {
	msg := e.Kind.Error()
	if e.Entity != "" {
		msg += ": " + e.Entity
		if e.ID != 0 {
			msg += fmt.Sprintf(" #%d", e.ID)
		}
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *StoreError) Unwrap() error {
	return e.Kind
}

func newStoreError(kind error, entity string, id int64, format string, args ...any) *StoreError {
	return &StoreError{
		Kind:   kind,
		Entity: entity,
		ID:     id,
		Detail: fmt.Sprintf(format, args...),
	}
}

func ConstraintViolation(entity string, id int64, format string, args ...any) error {
	return newStoreError(ErrConstraintViolation, entity, id, format, args...)
}

func SingletonViolation(entity string, format string, args ...any) error {
	return newStoreError(ErrSingletonViolation, entity, 0, format, args...)
}

func InvariantViolation(entity string, id int64, format string, args ...any) error {
	return newStoreError(ErrInvariantViolation, entity, id, format, args...)
}

func NotFound(entity string, id int64) error {
	return &StoreError{Kind: ErrNotFound, Entity: entity, ID: id}
}

// MalformedRule wraps a rule parse failure; rule is the offending text.
func MalformedRule(rule string, format string, args ...any) error {
	return &StoreError{
		Kind:   ErrMalformedRule,
		Detail: fmt.Sprintf("%q: %s", rule, fmt.Sprintf(format, args...)),
	}
}

func Validation(entity string, format string, args ...any) error {
	return newStoreError(ErrValidation, entity, 0, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...any) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
