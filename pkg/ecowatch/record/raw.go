package record

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind is the primitive kind of a raw field value
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "other"
	}
}

// Value is a single untyped field of a raw reading, tagged with its kind.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
}

func StringValue(s string) Value  { return Value{kind: KindString, str: s} }
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }
func BoolValue(b bool) Value      { return Value{kind: KindBool, b: b} }
func NullValue() Value            { return Value{kind: KindNull} }

// ValueOf classifies an arbitrary decoded Go value (JSON, database/sql, ...).
// Anything that is not a string, number, bool or nil is KindOther.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return NullValue()
	case string:
		return StringValue(t)
	case []byte:
		return StringValue(string(t))
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int8:
		return NumberValue(float64(t))
	case int16:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case uint:
		return NumberValue(float64(t))
	case uint8:
		return NumberValue(float64(t))
	case uint16:
		return NumberValue(float64(t))
	case uint32:
		return NumberValue(float64(t))
	case uint64:
		return NumberValue(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return NumberValue(f)
		}
		return StringValue(t.String())
	case Value:
		return t
	default:
		return Value{kind: KindOther, str: fmt.Sprintf("%v", t)}
	}
}

// Kind returns the kind of the value
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload and whether the value is a string
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric payload and whether the value is a number
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindString:
		return strconv.Quote(v.str)
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return v.str
	}
}

// RawReading is an untyped sensor reading as produced by a source adapter.
// It is consumed only by Validate and FromRaw.
type RawReading struct {
	fields map[string]Value
}

// NewRawReading builds a raw reading from already tagged values.
func NewRawReading(fields map[string]Value) RawReading {
	r := RawReading{fields: make(map[string]Value, len(fields))}
	for k, v := range fields {
		r.fields[k] = v
	}
	return r
}

// RawFromMap builds a raw reading from decoded Go values, classifying each one.
func RawFromMap(m map[string]any) RawReading {
	r := RawReading{fields: make(map[string]Value, len(m))}
	for k, v := range m {
		r.fields[k] = ValueOf(v)
	}
	return r
}

// Field returns the named field, if present
func (r RawReading) Field(name string) (Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Len returns the number of fields
func (r RawReading) Len() int { return len(r.fields) }

// String renders the reading with keys sorted, for log lines.
func (r RawReading) String() string {
	keys := make([]string, 0, len(r.fields))
	for k := range r.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(r.fields[k].String())
	}
	sb.WriteByte('}')
	return sb.String()
}
