// Package schema defines the uniform row model every log format is
// normalized into, and the report produced by an analysis run.
package schema

import (
	"encoding/json"
	"math"
	"strconv"
)

// Kind identifies the type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "null"
	}
}

// Value is a single scalar cell of a Record.
// The zero Value is null.
type Value struct {
	kind Kind
	str  string // string payload, or source text of a number
	num  float64
	b    bool
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f, str: strconv.FormatFloat(f, 'f', -1, 64)}
}

// NumberText returns a numeric value that keeps its source text for display.
// It falls back to a string value when text is not a number.
func NumberText(text string) Value {
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return String(text)
	}
	return Value{kind: KindNumber, num: f, str: text}
}

// Kind returns the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload and true when v is a string value.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Float returns the numeric payload and true when v is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	}
	return true
}

// String renders the value for display. Null renders as "null".
func (v Value) String() string {
	switch v.kind {
	case KindString, KindNumber:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	}
	return "null"
}

// MarshalJSON encodes the value as its JSON scalar. A number keeps its source
// text when that text is a JSON number literal, so large integers survive;
// other spellings such as "007" or "+5" are written in canonical form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if json.Valid([]byte(v.str)) {
			return []byte(v.str), nil
		}
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	}
	return []byte("null"), nil
}

// key appends a kind-tagged encoding of v used for equality hashing.
func (v Value) key(buf []byte) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindString:
		buf = strconv.AppendInt(buf, int64(len(v.str)), 10)
		buf = append(buf, ':')
		buf = append(buf, v.str...)
	case KindNumber:
		buf = strconv.AppendFloat(buf, v.num, 'g', -1, 64)
		buf = append(buf, ';')
	case KindBool:
		buf = strconv.AppendBool(buf, v.b)
		buf = append(buf, ';')
	}
	return buf
}
