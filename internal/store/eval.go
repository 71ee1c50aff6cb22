package store

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/roach88/strata/internal/predicate"
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// Eval evaluates a compiled predicate against one record.
//
// Boolean nodes follow their usual truth tables; XOR over n children is
// odd parity. An atom reaching through one-to-many relations matches when
// any reachable sub-record row satisfies it.
func Eval(rec *record.Record, p predicate.Predicate) (bool, error) {
	switch pred := p.(type) {
	case predicate.True:
		return true, nil

	case *predicate.Match:
		return evalMatch(rec, pred)

	case *predicate.And:
		for _, child := range pred.Predicates {
			ok, err := Eval(rec, child)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case *predicate.Or:
		for _, child := range pred.Predicates {
			ok, err := Eval(rec, child)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case *predicate.Xor:
		matches := 0
		for _, child := range pred.Predicates {
			ok, err := Eval(rec, child)
			if err != nil {
				return false, err
			}
			if ok {
				matches++
			}
		}
		return matches%2 == 1, nil

	case *predicate.Not:
		ok, err := Eval(rec, pred.Predicate)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// evalMatch evaluates one atomic comparison.
func evalMatch(rec *record.Record, m *predicate.Match) (bool, error) {
	name := fieldName(m.Path)

	// A relation match is an existence check over the sub-record list.
	if m.Type == schema.TypeRelation {
		want, ok := m.Value.(record.Bool)
		if !ok {
			return false, fmt.Errorf("relation %s: isnull requires a boolean", m.Path)
		}
		exists := false
		for _, parent := range reachRecords(rec, m.RelationPath) {
			if len(parent.Nested[name]) > 0 {
				exists = true
				break
			}
		}
		return exists == !bool(want), nil
	}

	parents := reachRecords(rec, m.RelationPath)
	values := make([]record.Value, 0, len(parents))
	for _, parent := range parents {
		values = append(values, parent.Scalar(name))
	}

	// An isnull=true atom matches when no row is reachable at all:
	// absent sub-records read as absent values.
	if m.Lookup == schema.LookupIsNull && len(values) == 0 {
		want, ok := m.Value.(record.Bool)
		if !ok {
			return false, fmt.Errorf("field %s: isnull requires a boolean", m.Path)
		}
		return bool(want), nil
	}

	for _, v := range values {
		ok, err := evalLookup(m, v)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// reachRecords collects every record reachable along a relation path.
func reachRecords(rec *record.Record, relationPath []string) []*record.Record {
	current := []*record.Record{rec}
	for _, hop := range relationPath {
		var next []*record.Record
		for _, r := range current {
			next = append(next, r.Nested[hop]...)
		}
		current = next
	}
	return current
}

// fieldName returns the final segment of a field path.
func fieldName(path string) string {
	segments := strings.Split(path, schema.Separator)
	return segments[len(segments)-1]
}

// evalLookup applies one lookup to one stored value.
func evalLookup(m *predicate.Match, v record.Value) (bool, error) {
	switch m.Lookup {
	case schema.LookupIsNull:
		want, ok := m.Value.(record.Bool)
		if !ok {
			return false, fmt.Errorf("field %s: isnull requires a boolean", m.Path)
		}
		return record.IsNull(v) == bool(want), nil

	case schema.LookupExact:
		if record.IsNull(v) {
			return false, nil
		}
		return record.Equal(v, m.Value), nil

	case schema.LookupIn:
		list, ok := m.Value.(record.List)
		if !ok {
			return false, fmt.Errorf("field %s: in requires a list", m.Path)
		}
		if record.IsNull(v) {
			return false, nil
		}
		for _, item := range list {
			if record.Equal(v, item) {
				return true, nil
			}
		}
		return false, nil

	case schema.LookupLT, schema.LookupLTE, schema.LookupGT, schema.LookupGTE:
		if record.IsNull(v) {
			return false, nil
		}
		cmp, err := record.Compare(v, m.Value)
		if err != nil {
			return false, nil // incomparable stored value never matches
		}
		switch m.Lookup {
		case schema.LookupLT:
			return cmp < 0, nil
		case schema.LookupLTE:
			return cmp <= 0, nil
		case schema.LookupGT:
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}

	case schema.LookupRange:
		return evalRange(m.Path, v, m.Value)

	case schema.LookupContains:
		if m.Type == schema.TypeArray {
			list, ok := v.(record.List)
			if !ok {
				return false, nil
			}
			for _, item := range list {
				if record.Equal(item, m.Value) {
					return true, nil
				}
			}
			return false, nil
		}
		return textMatch(v, m.Value, strings.Contains), nil

	case schema.LookupStartsWith:
		return textMatch(v, m.Value, strings.HasPrefix), nil
	case schema.LookupEndsWith:
		return textMatch(v, m.Value, strings.HasSuffix), nil

	case schema.LookupIExact:
		return foldMatch(v, m.Value, func(s, sub string) bool { return s == sub }), nil
	case schema.LookupIContains:
		return foldMatch(v, m.Value, strings.Contains), nil
	case schema.LookupIStartsWith:
		return foldMatch(v, m.Value, strings.HasPrefix), nil
	case schema.LookupIEndsWith:
		return foldMatch(v, m.Value, strings.HasSuffix), nil

	case schema.LookupRegex, schema.LookupIRegex:
		return evalRegex(m, v)

	case schema.LookupLength:
		n, ok := lengthOf(v)
		if !ok {
			return false, nil
		}
		return record.Equal(record.Int(n), m.Value), nil

	case schema.LookupLengthIn:
		n, ok := lengthOf(v)
		if !ok {
			return false, nil
		}
		return intIn(n, m.Value)

	case schema.LookupLengthRange:
		n, ok := lengthOf(v)
		if !ok {
			return false, nil
		}
		return evalRange(m.Path, record.Int(n), m.Value)

	case schema.LookupYear:
		y, ok := yearOf(v)
		if !ok {
			return false, nil
		}
		return record.Equal(record.Int(y), m.Value), nil

	case schema.LookupYearIn:
		y, ok := yearOf(v)
		if !ok {
			return false, nil
		}
		return intIn(y, m.Value)

	case schema.LookupYearRange:
		y, ok := yearOf(v)
		if !ok {
			return false, nil
		}
		return evalRange(m.Path, record.Int(y), m.Value)

	default:
		return false, fmt.Errorf("field %s: unsupported lookup %q", m.Path, m.Lookup)
	}
}

// evalRange checks lo <= v <= hi, both ends inclusive.
func evalRange(path string, v record.Value, bounds record.Value) (bool, error) {
	list, ok := bounds.(record.List)
	if !ok || len(list) != 2 {
		return false, fmt.Errorf("field %s: range requires two bounds", path)
	}
	if record.IsNull(v) {
		return false, nil
	}

	lo, err := record.Compare(v, list[0])
	if err != nil {
		return false, nil
	}
	hi, err := record.Compare(v, list[1])
	if err != nil {
		return false, nil
	}
	return lo >= 0 && hi <= 0, nil
}

// evalRegex matches a stored text value against the atom's pattern.
func evalRegex(m *predicate.Match, v record.Value) (bool, error) {
	s, ok := v.(record.String)
	if !ok {
		return false, nil
	}
	pattern, ok := m.Value.(record.String)
	if !ok {
		return false, fmt.Errorf("field %s: regex requires a string pattern", m.Path)
	}

	expr := string(pattern)
	if m.Lookup == schema.LookupIRegex {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return false, fmt.Errorf("field %s: bad pattern: %w", m.Path, err)
	}
	return re.MatchString(string(s)), nil
}

// textMatch applies a string relation when both sides are strings.
func textMatch(v, target record.Value, rel func(s, sub string) bool) bool {
	s, ok := v.(record.String)
	if !ok {
		return false
	}
	sub, ok := target.(record.String)
	if !ok {
		return false
	}
	return rel(string(s), string(sub))
}

// foldMatch is textMatch with both sides case-folded.
func foldMatch(v, target record.Value, rel func(s, sub string) bool) bool {
	s, ok := v.(record.String)
	if !ok {
		return false
	}
	sub, ok := target.(record.String)
	if !ok {
		return false
	}
	return rel(schema.Fold(string(s)), schema.Fold(string(sub)))
}

// lengthOf returns the comparable length of a text or array value.
func lengthOf(v record.Value) (int64, bool) {
	switch val := v.(type) {
	case record.String:
		return int64(utf8.RuneCountInString(string(val))), true
	case record.List:
		return int64(len(val)), true
	}
	return 0, false
}

// yearOf returns the calendar year of a date-like value.
func yearOf(v record.Value) (int64, bool) {
	switch val := v.(type) {
	case record.Date:
		return int64(val.Time.Year()), true
	case record.YearMonth:
		return int64(val.Time.Year()), true
	}
	return 0, false
}

// intIn checks membership of an integer in a list value.
func intIn(n int64, target record.Value) (bool, error) {
	list, ok := target.(record.List)
	if !ok {
		return false, fmt.Errorf("in requires a list")
	}
	for _, item := range list {
		if record.Equal(record.Int(n), item) {
			return true, nil
		}
	}
	return false, nil
}
