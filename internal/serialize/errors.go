package serialize

import (
	"fmt"
)

// SerializationError is the single error kind returned by the engine.
// It names the offending field and wraps either a *MissingFieldError, a
// *TransformError or the SerializationError of a nested record.
type SerializationError struct {
	Field    string
	Value    any
	HasValue bool
	Target   Kind
	Err      error
}

func (e *SerializationError) Error() string {
	if e.HasValue {
		return fmt.Sprintf("serialize field %q with value '%v' as %s: %v", e.Field, e.Value, e.Target, e.Err)
	}
	return fmt.Sprintf("serialize field %q: %v", e.Field, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// MissingFieldError reports a declared field that the record does not expose.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("record has no attribute %q", e.Field)
}

// TransformError reports a value that cannot be converted to its declared kind.
type TransformError struct {
	Value  any
	Target Kind
	Err    error
}

func (e *TransformError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cannot convert %T to %s", e.Value, e.Target)
	}
	return fmt.Sprintf("cannot convert %T to %s: %v", e.Value, e.Target, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}
