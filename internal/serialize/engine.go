package serialize

import (
	"errors"
	"fmt"
)

const (
	// DefaultTimestampLayout renders instants without a zone suffix.
	DefaultTimestampLayout = "2006-01-02 15:04:05"
	// DefaultDateLayout renders ISO-8601 calendar dates.
	DefaultDateLayout = "2006-01-02"
)

var (
	errNotSequence     = errors.New("value is not a sequence")
	errNotSerializable = errors.New("value does not implement Serializable")
)

// Engine holds the output layouts used by the Timestamp and Date transforms.
// The zero value is not usable; construct engines with New.
type Engine struct {
	timestampLayout string
	dateLayout      string
}

// Option customises an Engine.
type Option func(*Engine)

// WithTimestampLayout overrides the layout used for Timestamp fields.
func WithTimestampLayout(layout string) Option {
	return func(e *Engine) {
		e.timestampLayout = layout
	}
}

// WithDateLayout overrides the layout used for Date fields.
func WithDateLayout(layout string) Option {
	return func(e *Engine) {
		e.dateLayout = layout
	}
}

// New creates an Engine with the default layouts unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{
		timestampLayout: DefaultTimestampLayout,
		dateLayout:      DefaultDateLayout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Serialize projects a record with the default engine.
func Serialize(s Serializable) (Map, error) {
	return defaultEngine.Serialize(s)
}

// SerializeAll projects every record of a slice with the default engine.
func SerializeAll[T Serializable](items []T) ([]Map, error) {
	return All(defaultEngine, items)
}

// All projects every record of a slice with e, preserving order.
// The error of the first failing record is returned with its index.
func All[T Serializable](e *Engine, items []T) ([]Map, error) {
	out := make([]Map, 0, len(items))
	for i, item := range items {
		m, err := e.Serialize(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

// Serialize walks the declared fields of s in order and returns a freshly
// allocated mapping. s is never modified.
func (e *Engine) Serialize(s Serializable) (Map, error) {
	fields := s.Fields()
	out := make(Map, len(fields))

	for _, f := range fields {
		value, ok := s.FieldValue(f.Name)
		if !ok {
			return nil, &SerializationError{
				Field:  f.Name,
				Target: f.Kind,
				Err:    &MissingFieldError{Field: f.Name},
			}
		}

		v, err := e.field(f, value)
		if err != nil {
			return nil, &SerializationError{
				Field:    f.Name,
				Value:    value,
				HasValue: true,
				Target:   f.Kind,
				Err:      err,
			}
		}
		out[f.Name] = v
	}

	return out, nil
}

func (e *Engine) field(f Field, value any) (any, error) {
	if isAbsent(value) {
		return nil, nil
	}
	if f.Kind == Sequence {
		return e.sequence(f.Elem, value)
	}
	if nested, ok := value.(Serializable); ok {
		return e.Serialize(nested)
	}
	return e.transform(value, f.Kind)
}

func (e *Engine) sequence(elem Kind, value any) (any, error) {
	var items []any
	switch v := value.(type) {
	case []any:
		items = v
	case []Serializable:
		items = List(v)
	default:
		return nil, &TransformError{Value: value, Target: Sequence, Err: errNotSequence}
	}

	out := make([]any, len(items))
	for i, item := range items {
		var (
			v   any
			err error
		)
		if elem == Nested && !isAbsent(item) {
			nested, ok := item.(Serializable)
			if !ok {
				return nil, fmt.Errorf("element %d: %w", i, &TransformError{Value: item, Target: Nested, Err: errNotSerializable})
			}
			v, err = e.Serialize(nested)
		} else {
			v, err = e.transform(item, elem)
		}
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
