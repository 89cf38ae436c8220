package serialize

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	errNotFinite     = errors.New("value is not finite")
	errOutOfRange    = errors.New("value out of int64 range")
	errUnsupported   = errors.New("unsupported value type")
	errEmptyDateText = errors.New("empty time text")
)

func (e *Engine) transform(value any, kind Kind) (any, error) {
	if isAbsent(value) {
		return nil, nil
	}
	value = deref(value)

	var (
		out any
		err error
	)
	switch kind {
	case Timestamp:
		var t time.Time
		if t, err = toTime(value); err == nil {
			out = t.UTC().Format(e.timestampLayout)
		}
	case Date:
		var t time.Time
		if t, err = toTime(value); err == nil {
			out = t.UTC().Format(e.dateLayout)
		}
	case Identifier:
		out, err = identifierText(value)
	case Decimal:
		out, err = decimalText(value)
	case Integer:
		out, err = toInt64(value)
	case Nested:
		err = errNotSerializable
	default:
		return value, nil
	}

	if err != nil {
		return nil, &TransformError{Value: value, Target: kind, Err: err}
	}
	return out, nil
}

// isAbsent reports whether a field value renders as JSON null.
func isAbsent(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case []any:
		return v == nil
	case []Serializable:
		return v == nil
	case *time.Time:
		return v == nil
	case *decimal.Decimal:
		return v == nil
	case decimal.NullDecimal:
		return !v.Valid
	case *uuid.UUID:
		return v == nil
	case uuid.NullUUID:
		return !v.Valid
	case *string:
		return v == nil
	case *int:
		return v == nil
	case *int64:
		return v == nil
	case *float64:
		return v == nil
	case *bool:
		return v == nil
	}
	// Typed nil pointers of any other type, including nested records.
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func deref(value any) any {
	switch v := value.(type) {
	case *time.Time:
		return *v
	case *decimal.Decimal:
		return *v
	case decimal.NullDecimal:
		return v.Decimal
	case *uuid.UUID:
		return *v
	case uuid.NullUUID:
		return v.UUID
	case *string:
		return *v
	case *int:
		return *v
	case *int64:
		return *v
	case *float64:
		return *v
	case *bool:
		return *v
	}
	return value
}

func toTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, errEmptyDateText
		}
		return dateparse.ParseIn(s, time.UTC)
	default:
		return time.Time{}, errUnsupported
	}
}

func identifierText(value any) (string, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case [16]byte:
		return uuid.UUID(v).String(), nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return "", err
		}
		return id.String(), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", errUnsupported
	}
}

func decimalText(value any) (string, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return DecimalString(v), nil
	case string:
		s := strings.TrimSpace(v)
		if _, err := decimal.NewFromString(s); err != nil {
			return "", err
		}
		return s, nil
	case json.Number:
		if _, err := decimal.NewFromString(v.String()); err != nil {
			return "", err
		}
		return v.String(), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", errNotFinite
		}
		return FloatString(v, 64), nil
	case float32:
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", errNotFinite
		}
		return FloatString(f, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := toInt64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	default:
		return "", errUnsupported
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return uintToInt64(uint64(v))
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return uintToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case float64:
		return floatToInt64(v)
	case decimal.Decimal:
		return v.IntPart(), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, errUnsupported
	}
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errOutOfRange
	}
	return int64(v), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, errOutOfRange
	}
	return int64(t), nil
}

// DecimalString renders d with exactly the digits it was built from, so
// 12.50 stays "12.50".
func DecimalString(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// FloatString renders a float with the shortest text that round-trips,
// keeping at least one fractional digit (2 renders as "2.0").
func FloatString(f float64, bitSize int) string {
	s := strconv.FormatFloat(f, 'f', -1, bitSize)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
