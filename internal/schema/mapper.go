package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rzpsarthak13/docshelf/internal/core"
)

// FieldTyper is implemented by descriptors that carry a type tag.
type FieldTyper interface {
	FieldType() string
}

// FieldSpec is the structured form of a type descriptor.
type FieldSpec struct {
	Type string `yaml:"type" json:"type"`
}

// FieldType returns the descriptor's type tag.
func (f FieldSpec) FieldType() string {
	return f.Type
}

var textTags = []string{"STRING", "TEXT", "EMAIL", "URL", "CHAR", "UUID"}

var numberTags = []string{"NUMBER", "INT", "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC", "REAL"}

var bigIntTags = []string{"BIGINT", "INT64", "LONG"}

var binaryTags = []string{"BLOB", "BINARY", "BYTES"}

// MapFieldType resolves a type descriptor to a column type.
// The descriptor is either a bare tag or a structure carrying a "type" attribute.
// Rules are matched case-insensitively by substring in a fixed priority order,
// and anything unmatched falls back to text.
func MapFieldType(descriptor interface{}) core.ColumnType {
	tag := strings.ToUpper(strings.TrimSpace(descriptorTag(descriptor)))

	switch {
	case containsAny(tag, textTags):
		return core.ColumnText
	case containsAny(tag, numberTags):
		if containsAny(tag, bigIntTags) {
			return core.ColumnBigInt
		}
		if strings.Contains(tag, "INT") {
			return core.ColumnInteger
		}
		return core.ColumnFloat
	case strings.Contains(tag, "BOOL"):
		return core.ColumnBoolean
	case strings.Contains(tag, "DATE"), strings.Contains(tag, "TIME"):
		return core.ColumnTimestamp
	case strings.Contains(tag, "JSON"):
		return core.ColumnJSON
	case containsAny(tag, binaryTags):
		return core.ColumnBinary
	default:
		return core.ColumnText
	}
}

func descriptorTag(descriptor interface{}) string {
	switch d := descriptor.(type) {
	case string:
		return d
	case FieldTyper:
		return d.FieldType()
	case map[string]interface{}:
		tag, _ := d["type"].(string)
		return tag
	case map[string]string:
		return d["type"]
	default:
		return ""
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// FormatTimestamp renders t as an ISO-8601 UTC string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// NormalizeValue converts v into its JSON-normal form by a JSON round trip.
func NormalizeValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
	}
	return out, nil
}

// TypeMapper converts values between their document form and their column form.
type TypeMapper struct{}

// NewTypeMapper creates a new type mapper.
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// ToDBValue converts a document value into a bind parameter for a column of type t.
func (tm *TypeMapper) ToDBValue(value interface{}, t core.ColumnType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch t {
	case core.ColumnInteger:
		return tm.toInt32(value)
	case core.ColumnBigInt:
		return tm.toInt64(value)
	case core.ColumnFloat:
		return tm.toFloat64(value)
	case core.ColumnBoolean:
		return tm.toBool(value)
	case core.ColumnTimestamp:
		ts, err := tm.toTime(value)
		if err != nil {
			return nil, err
		}
		return ts.UTC().Truncate(time.Millisecond), nil
	case core.ColumnJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrSerialization, err)
		}
		return string(data), nil
	case core.ColumnBinary:
		return tm.toBytes(value)
	default:
		return tm.toString(value)
	}
}

// FromDBValue converts a scanned column value of type t back into its
// JSON-normal document form.
func (tm *TypeMapper) FromDBValue(value interface{}, t core.ColumnType) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch t {
	case core.ColumnInteger, core.ColumnBigInt:
		i, err := tm.toInt64(value)
		if err != nil {
			return nil, err
		}
		return float64(i), nil
	case core.ColumnFloat:
		return tm.toFloat64(value)
	case core.ColumnBoolean:
		return tm.toBool(value)
	case core.ColumnTimestamp:
		ts, err := tm.toTime(value)
		if err != nil {
			return nil, err
		}
		return FormatTimestamp(ts), nil
	case core.ColumnJSON:
		return tm.parseJSON(value)
	case core.ColumnBinary:
		b, err := tm.toBytes(value)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return tm.toString(value)
	}
}

// parseJSON accepts a JSON column as text, bytes, or a value the engine
// client already decoded.
func (tm *TypeMapper) parseJSON(value interface{}) (interface{}, error) {
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return NormalizeValue(v)
	}

	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: cannot parse JSON column: %v", core.ErrSerialization, err)
	}
	return out, nil
}

func (tm *TypeMapper) toInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
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
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to int64: %w", v, err)
		}
		return floatToInt64(f)
	case []byte:
		return tm.toInt64(string(v))
	case string:
		s := strings.TrimSpace(v)
		i, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			return i, nil
		}
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, fmt.Errorf("cannot convert string to int64: %w", err)
		}
		return floatToInt64(f)
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", value)
	}
}

// toInt32 is toInt64 limited to the range of a 32-bit INT column.
func (tm *TypeMapper) toInt32(value interface{}) (int64, error) {
	i, err := tm.toInt64(value)
	if err != nil {
		return 0, err
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("%d overflows a 32-bit integer column", i)
	}
	return i, nil
}

func uintToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%d overflows int64", v)
	}
	return int64(v), nil
}

// floatToInt64 accepts only integral values inside the int64 range.
// 2^63 itself is representable as a float64 but not as an int64.
func floatToInt64(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("cannot convert %v to int64", v)
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	if v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, fmt.Errorf("%v overflows int64", v)
	}
	return int64(v), nil
}

func (tm *TypeMapper) toFloat64(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case []byte:
		return tm.toFloat64(string(v))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert string to float64: %w", err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", value)
	}
}

func (tm *TypeMapper) toString(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	case time.Time:
		return FormatTimestamp(v), nil
	default:
		// Structured values are stored as their JSON text.
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: cannot convert %T to string: %v", core.ErrSerialization, value, err)
		}
		return string(data), nil
	}
}

func (tm *TypeMapper) toBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to []byte", value)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (tm *TypeMapper) toTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return tm.toTime(string(v))
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse time string: %s", v)
	case float64:
		// Milliseconds since the epoch, the JSON rendering of a date.
		return time.UnixMilli(int64(v)), nil
	case int64:
		return time.UnixMilli(v), nil
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time.Time", value)
	}
}

func (tm *TypeMapper) toBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case []byte:
		return tm.toBool(string(v))
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			// Try numeric string
			if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return i != 0, nil
			}
			return false, fmt.Errorf("cannot convert string to bool: %w", err)
		}
		return b, nil
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}
