package weather

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/i474232898/fogcast-backend/internal/serialize"
)

var (
	// ErrNotNumeric is returned when a value or quality cannot be read as a decimal.
	ErrNotNumeric = errors.New("value is not numeric")
	// ErrZeroTimestamp is returned when a record is built without a timestamp.
	ErrZeroTimestamp = errors.New("timestamp is required")
)

// Record is the canonical measurement emitted by every provider adapter.
// Records are immutable; build them with NewRecord.
type Record struct {
	name    string
	date    time.Time // always UTC
	value   decimal.Decimal
	quality decimal.Decimal
	unit    string
}

// RecordOption sets optional attributes on a Record.
type RecordOption func(*Record)

// WithUnit attaches a free-text unit to the record.
func WithUnit(unit string) RecordOption {
	return func(r *Record) {
		r.unit = unit
	}
}

// NewRecord validates value and quality and normalizes ts to UTC.
func NewRecord(name string, ts time.Time, value, quality any, opts ...RecordOption) (Record, error) {
	if ts.IsZero() {
		return Record{}, fmt.Errorf("record %q: %w", name, ErrZeroTimestamp)
	}
	v, err := ToDecimal(value)
	if err != nil {
		return Record{}, fmt.Errorf("record %q value: %w", name, err)
	}
	q, err := ToDecimal(quality)
	if err != nil {
		return Record{}, fmt.Errorf("record %q quality: %w", name, err)
	}

	r := Record{
		name:    name,
		date:    ts.UTC(),
		value:   v,
		quality: q,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r, nil
}

func (r Record) Name() string { return r.name }

func (r Record) Date() time.Time { return r.date }

func (r Record) Value() decimal.Decimal { return r.value }

func (r Record) Quality() decimal.Decimal { return r.quality }

func (r Record) Unit() string { return r.unit }

var recordFields = []serialize.Field{
	serialize.F("name", serialize.Plain),
	serialize.F("date", serialize.Timestamp),
	serialize.F("value", serialize.Decimal),
	serialize.F("quality", serialize.Decimal),
}

// Fields declares name, date, value and quality. The unit is not part of the
// response shape.
func (r Record) Fields() []serialize.Field {
	return recordFields
}

func (r Record) FieldValue(name string) (any, bool) {
	switch name {
	case "name":
		return r.name, true
	case "date":
		return r.date, true
	case "value":
		return r.value, true
	case "quality":
		return r.quality, true
	case "unit":
		return r.unit, true
	}
	return nil, false
}

// DailyRecord is a Record whose date is rendered as a calendar date.
type DailyRecord struct {
	Record
}

// NewDailyRecord builds a record for period aggregates (months, years) where
// the time of day carries no meaning.
func NewDailyRecord(name string, day time.Time, value, quality any, opts ...RecordOption) (DailyRecord, error) {
	r, err := NewRecord(name, day, value, quality, opts...)
	if err != nil {
		return DailyRecord{}, err
	}
	return DailyRecord{Record: r}, nil
}

var dailyRecordFields = []serialize.Field{
	serialize.F("name", serialize.Plain),
	serialize.F("date", serialize.Date),
	serialize.F("value", serialize.Decimal),
	serialize.F("quality", serialize.Decimal),
}

func (r DailyRecord) Fields() []serialize.Field {
	return dailyRecordFields
}

// ToDecimal converts provider values into exact decimals. Floats keep their
// shortest round-trip text, so 2.0 stays "2.0".
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, ErrNotNumeric
		}
		return *x, nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrNotNumeric, x)
		}
		return d, nil
	case json.Number:
		return ToDecimal(x.String())
	case float64:
		return floatDecimal(x, 64)
	case float32:
		return floatDecimal(float64(x), 32)
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

func floatDecimal(f float64, bitSize int) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrNotNumeric, f)
	}
	return decimal.NewFromString(serialize.FloatString(f, bitSize))
}
