package record

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the exact format accepted and emitted for Date values.
const DateLayout = "2006-01-02"

// YearMonthLayout is the exact format accepted and emitted for YearMonth values.
const YearMonthLayout = "2006-01"

// Value is a sealed interface representing a typed scalar value.
//
// Only the types in this package implement it. The marker method pattern
// prevents external implementations and enables exhaustive type switches in
// the validator, the compiler and the store's evaluator.
//
// Value types:
//   - Null: absent value
//   - String: text, choice and identifier payloads
//   - Int: 64-bit integers
//   - Float: 64-bit floats
//   - Bool: booleans
//   - Date: a calendar day (no time component)
//   - YearMonth: a calendar month
//   - List: ordered values, used by "in" and "range" lookups
//   - Structured: an opaque JSON document stored verbatim
type Value interface {
	value() // Marker method - seals interface to this package
}

// Null represents an absent value.
// An explicit type so that all Values satisfy the sealed interface.
type Null struct{}

func (Null) value() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// String represents a text value.
type String string

func (String) value() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) value() {}

// Float represents a floating point value.
type Float float64

func (Float) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Date represents a calendar day.
type Date struct {
	Time time.Time
}

func (Date) value() {}

// MarshalJSON implements json.Marshaler for Date.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.Format(DateLayout))
}

// String returns the date in DateLayout form.
func (d Date) String() string {
	return d.Time.Format(DateLayout)
}

// YearMonth represents a calendar month.
type YearMonth struct {
	Time time.Time
}

func (YearMonth) value() {}

// MarshalJSON implements json.Marshaler for YearMonth.
func (m YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Time.Format(YearMonthLayout))
}

// String returns the month in YearMonthLayout form.
func (m YearMonth) String() string {
	return m.Time.Format(YearMonthLayout)
}

// List represents an ordered sequence of values.
// Lists never nest: elements are scalar Values.
type List []Value

func (List) value() {}

// Structured holds an opaque JSON object, compacted at decode time so
// equal documents compare byte-equal. It carries no internal typing:
// structured fields store and return their payload verbatim.
type Structured []byte

func (Structured) value() {}

// MarshalJSON implements json.Marshaler for Structured.
func (s Structured) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte(s), nil
}

// NewDate constructs a Date from a time, truncating any time-of-day component.
func NewDate(t time.Time) Date {
	y, mo, d := t.Date()
	return Date{Time: time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)}
}

// NewYearMonth constructs a YearMonth from a time, truncating to the month.
func NewYearMonth(t time.Time) YearMonth {
	y, mo, _ := t.Date()
	return YearMonth{Time: time.Date(y, mo, 1, 0, 0, 0, 0, time.UTC)}
}

// IsNull reports whether v is absent (nil or Null).
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// Format renders a value in its canonical user-facing form.
// Used for error echoes, grouped summary keys and golden output.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case String:
		return string(val)
	case Int:
		return fmt.Sprintf("%d", int64(val))
	case Float:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", float64(val)), "0"), ".")
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Date:
		return val.String()
	case YearMonth:
		return val.String()
	case List:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = Format(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Structured:
		return string(val)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports whether two values are equal.
// Int and Float compare across the numeric types; all other comparisons
// require the same concrete type. Null equals only Null.
func Equal(a, b Value) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}

	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return Float(av) == bv
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return av == Float(bv)
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Date:
		bv, ok := b.(Date)
		return ok && av.Time.Equal(bv.Time)
	case YearMonth:
		bv, ok := b.(YearMonth)
		return ok && av.Time.Equal(bv.Time)
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Structured:
		bv, ok := b.(Structured)
		return ok && string(av) == string(bv)
	}
	return false
}

// Compare orders two values of compatible types.
// Returns a negative, zero or positive result, or an error when the types
// cannot be ordered (booleans, lists, mismatched kinds).
func Compare(a, b Value) (int, error) {
	switch av := a.(type) {
	case String:
		if bv, ok := b.(String); ok {
			return strings.Compare(string(av), string(bv)), nil
		}
	case Int:
		switch bv := b.(type) {
		case Int:
			switch {
			case av < bv:
				return -1, nil
			case av > bv:
				return 1, nil
			}
			return 0, nil
		case Float:
			return compareFloats(float64(av), float64(bv)), nil
		}
	case Float:
		switch bv := b.(type) {
		case Float:
			return compareFloats(float64(av), float64(bv)), nil
		case Int:
			return compareFloats(float64(av), float64(bv)), nil
		}
	case Date:
		if bv, ok := b.(Date); ok {
			return av.Time.Compare(bv.Time), nil
		}
	case YearMonth:
		if bv, ok := b.(YearMonth); ok {
			return av.Time.Compare(bv.Time), nil
		}
	}
	return 0, fmt.Errorf("cannot order %T against %T", a, b)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
