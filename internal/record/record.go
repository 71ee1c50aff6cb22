package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Record is a single stored document: named scalar fields plus nested
// one-to-many sub-record lists keyed by relation name.
//
// A Record carries no schema of its own. Field typing, visibility and
// lookup legality are the catalog's concern; the Record is purely data.
type Record struct {
	// Fields holds the scalar values, keyed by field name.
	Fields map[string]Value

	// Nested holds the one-to-many sub-record lists, keyed by relation name.
	Nested map[string][]*Record
}

// New returns an empty record with initialised maps.
func New() *Record {
	return &Record{
		Fields: map[string]Value{},
		Nested: map[string][]*Record{},
	}
}

// Scalar returns the scalar value for a field name.
// Absent fields read as Null.
func (r *Record) Scalar(name string) Value {
	v, ok := r.Fields[name]
	if !ok {
		return Null{}
	}
	return v
}

// MarshalJSON implements json.Marshaler with sorted keys so that stored
// documents and golden output are byte-stable.
func (r *Record) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(r.Fields)+len(r.Nested))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	for k := range r.Nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')

		if v, ok := r.Fields[k]; ok {
			valJSON, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			buf.Write(valJSON)
			continue
		}

		subs := r.Nested[k]
		buf.WriteByte('[')
		for j, sub := range subs {
			if j > 0 {
				buf.WriteByte(',')
			}
			subJSON, err := json.Marshal(sub)
			if err != nil {
				return nil, fmt.Errorf("relation %q: %w", k, err)
			}
			buf.Write(subJSON)
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
//
// Decoding is structural: arrays of objects become nested sub-record lists,
// a lone object becomes an opaque Structured document, everything else
// becomes a scalar. Date and YearMonth strings are only recognised by
// their exact layouts; other strings stay String.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Fields = make(map[string]Value, len(raw))
	r.Nested = map[string][]*Record{}

	for k, v := range raw {
		if isObjectArray(v) {
			var subs []*Record
			if err := json.Unmarshal(v, &subs); err != nil {
				return fmt.Errorf("relation %q: %w", k, err)
			}
			r.Nested[k] = subs
			continue
		}

		val, err := unmarshalValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		r.Fields[k] = val
	}
	return nil
}

// isObjectArray reports whether a raw JSON value is an array whose first
// element is an object. Empty arrays decode as empty relation lists.
func isObjectArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return false
	}
	inner := bytes.TrimSpace(trimmed[1:])
	return len(inner) == 0 || inner[0] == ']' || inner[0] == '{'
}

// unmarshalValue decodes a raw JSON scalar into a Value.
func unmarshalValue(data []byte) (Value, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, err
		}
		if t, err := time.Parse(DateLayout, s); err == nil {
			return NewDate(t), nil
		}
		if t, err := time.Parse(YearMonthLayout, s); err == nil {
			return NewYearMonth(t), nil
		}
		return String(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return Null{}, nil

	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, err
		}
		list := make(List, len(elems))
		for i, e := range elems {
			v, err := unmarshalValue(e)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list[i] = v
		}
		return list, nil

	case '{':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err != nil {
			return nil, err
		}
		return Structured(buf.Bytes()), nil

	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, err
		}
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", string(trimmed))
		}
		return Float(f), nil
	}
}
