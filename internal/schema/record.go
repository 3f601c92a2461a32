package schema

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Semantic field names recognized by the detectors.
const (
	FieldTimestamp = "timestamp"
	FieldLevel     = "level"
	FieldMessage   = "message"
	FieldUser      = "user"
)

// Field is one name/value pair of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an immutable ordered mapping from field name to Value.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord builds a Record from fields in order. When a name repeats, the
// last value wins and the first position is kept.
func NewRecord(fields ...Field) Record {
	r := Record{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if i, ok := r.index[f.Name]; ok {
			r.fields[i].Value = f.Value
			continue
		}
		r.index[f.Name] = len(r.fields)
		r.fields = append(r.fields, f)
	}
	return r
}

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Get returns the value of a field and whether the field is present.
func (r Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.fields[i].Value, true
}

// Has reports whether the record carries the named field.
func (r Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r.fields))
	for i, f := range r.fields {
		names[i] = f.Name
	}
	return names
}

// Fields returns a copy of the fields in order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Text returns the string payload of a field. Missing fields, nulls and
// non-string values return false.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok {
		return "", false
	}
	return v.Str()
}

// Equal reports whether both records hold equal values in the same order.
func (r Record) Equal(o Record) bool {
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i, f := range r.fields {
		if f.Name != o.fields[i].Name || !f.Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}

// String renders the record as {name: value, ...} in field order.
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteString(": ")
		b.WriteString(f.Value.String())
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes the record as a JSON object preserving field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		val, err := f.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// rowKey is a kind-tagged encoding of every value, used for dedup.
func (r Record) rowKey() string {
	buf := make([]byte, 0, 64)
	for _, f := range r.fields {
		buf = f.Value.key(buf)
	}
	return string(buf)
}
