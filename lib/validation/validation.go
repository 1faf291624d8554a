// Package validation provides field validators for handlepool settings.
// Validators return nil on success and a *FieldError naming the field on
// failure, so several problems can be collected and reported together.
package validation

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
)

// Failure kinds, checked with errors.Is.
var (
	ErrRequired      = errors.New("field is required")
	ErrOutOfRange    = errors.New("value out of range")
	ErrInvalidFormat = errors.New("invalid format")
)

// FieldError is a validation failure for one setting.
type FieldError struct {
	Field  string
	Reason string
	Kind   error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Unwrap() error { return e.Kind }

// Fail builds a FieldError.
func Fail(field, reason string, kind error) *FieldError {
	return &FieldError{Field: field, Reason: reason, Kind: kind}
}

// Required rejects empty or blank strings.
func Required(field, value string) error {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return Fail(field, "is required", ErrRequired)
}

// AtLeast rejects values below floor.
func AtLeast[T cmp.Ordered](field string, value, floor T) error {
	if value >= floor {
		return nil
	}
	return Fail(field, fmt.Sprintf("must be at least %v", floor), ErrOutOfRange)
}

// NonNegative rejects values below zero. It serves ints, floats and
// time.Duration alike.
func NonNegative[T cmp.Ordered](field string, value T) error {
	var zero T
	if value >= zero {
		return nil
	}
	return Fail(field, "must not be negative", ErrOutOfRange)
}

// Format reports a parse error for field as ErrInvalidFormat. A nil err
// passes.
func Format(field string, err error) error {
	if err == nil {
		return nil
	}
	return Fail(field, err.Error(), fmt.Errorf("%w: %w", ErrInvalidFormat, err))
}

// Errors collects validation failures.
type Errors []error

// Add records err unless it is nil.
func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// HasErrors reports whether anything was recorded.
func (e Errors) HasErrors() bool { return len(e) > 0 }

func (e Errors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d validation errors: %s", len(e), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e Errors) Unwrap() []error { return e }

// Err returns the collection as an error, or nil if it is empty.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}
