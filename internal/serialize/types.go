// Package serialize projects declared records into JSON-safe mappings.
//
// A record type declares an ordered table of fields, each tagged with a
// semantic Kind. The engine walks that table, reads every value through the
// record's FieldValue accessor and applies the transform selected by the tag.
// Records that contain other records expose them as Nested values or as a
// Sequence of Nested values and are serialized recursively.
package serialize

// Kind is the semantic type tag of a declared field.
type Kind int

const (
	Plain Kind = iota
	Timestamp
	Date
	Identifier
	Decimal
	Integer
	Nested
	Sequence
)

func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Timestamp:
		return "timestamp"
	case Date:
		return "date"
	case Identifier:
		return "identifier"
	case Decimal:
		return "decimal"
	case Integer:
		return "integer"
	case Nested:
		return "nested"
	case Sequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Field is one entry of a record's field table.
// Elem is only consulted when Kind is Sequence.
type Field struct {
	Name string
	Kind Kind
	Elem Kind
}

// F declares a scalar or nested field.
func F(name string, kind Kind) Field {
	return Field{Name: name, Kind: kind}
}

// SequenceOf declares a field holding an ordered list whose elements are
// transformed with elem.
func SequenceOf(name string, elem Kind) Field {
	return Field{Name: name, Kind: Sequence, Elem: elem}
}

// Serializable is implemented by every record that leaves the system.
//
// Fields returns the declared table in output order. FieldValue returns the
// current value of a declared field and false when the record has no such
// attribute.
type Serializable interface {
	Fields() []Field
	FieldValue(name string) (any, bool)
}

// Map is the JSON-safe projection of a record.
type Map = map[string]any

// List adapts a typed slice for use as a Sequence field value.
// A nil slice stays absent.
func List[T any](items []T) []any {
	if items == nil {
		return nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
