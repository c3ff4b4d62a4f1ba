package schema

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError via errors.Is
var ErrValidation = errors.New("schema validation failed")

// FieldError is a single failed field check
type FieldError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (fe FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Reason)
}

// ValidationError reports every field of a raw payload that failed validation.
// Fields are in schema declaration order; the first one is the offending field
// surfaced by Field and Reason.
type ValidationError struct {
	Schema string
	Fields []FieldError
}

// Field returns the first offending field
func (e *ValidationError) Field() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Field
}

// Reason returns why the first offending field failed
func (e *ValidationError) Reason() string {
	if len(e.Fields) == 0 {
		return ""
	}
	return e.Fields[0].Reason
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s", e.Schema)
	}
	msg := fmt.Sprintf("invalid %s: %s", e.Schema, e.Fields[0])
	if extra := len(e.Fields) - 1; extra > 0 {
		msg += fmt.Sprintf(" (and %d more)", extra)
	}
	return msg
}

// Is reports whether target is ErrValidation
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}
