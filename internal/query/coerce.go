package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// boolTokens is the fixed token set accepted for boolean values,
// matched case-insensitively.
var boolTokens = map[string]bool{
	"true": true, "t": true, "y": true, "yes": true, "1": true,
	"false": false, "f": false, "n": false, "no": false, "0": false,
}

// coerceValue coerces a raw atom value for a field and lookup.
//
// The lookup decides the value's shape: "in" variants take a list of one
// or more, "range" variants take exactly two, "length"/"year" variants
// take integers regardless of the field's own type, and "isnull" takes a
// boolean, the one lookup permitted to ignore the field's type entirely,
// since it characterizes presence, not content.
func coerceValue(desc *schema.FieldDescriptor, lookup schema.Lookup, raw any) (record.Value, *schema.Error) {
	field := desc.Path

	switch lookup {
	case schema.LookupIsNull:
		return coerceBool(field, desc.Type, raw)

	case schema.LookupIn, schema.LookupNotIn:
		// Null inside an "in" list is meaningful: it matches absent values.
		return coerceList(field, desc, raw, scalarType(desc), 0, true)

	case schema.LookupRange:
		return coerceList(field, desc, raw, scalarType(desc), 2, false)

	case schema.LookupLengthIn, schema.LookupYearIn:
		return coerceList(field, desc, raw, schema.TypeInteger, 0, false)

	case schema.LookupLengthRange, schema.LookupYearRange:
		return coerceList(field, desc, raw, schema.TypeInteger, 2, false)

	case schema.LookupLength, schema.LookupYear:
		return coerceScalar(desc, schema.TypeInteger, raw)

	case schema.LookupNE:
		// ne accepts null: the compiler rewrites it to an existence check.
		if raw == nil {
			return record.Null{}, nil
		}
		return coerceScalar(desc, scalarType(desc), raw)

	default:
		if raw == nil {
			return nil, schema.NewCoercionError(field, desc.Type, "null",
				fmt.Sprintf("null is not a valid value for lookup %q", lookup))
		}
		return coerceScalar(desc, scalarType(desc), raw)
	}
}

// scalarType maps a field type to the scalar type its comparison values
// coerce through. Array elements compare as text.
func scalarType(desc *schema.FieldDescriptor) schema.FieldType {
	if desc.Type == schema.TypeArray {
		return schema.TypeText
	}
	return desc.Type
}

// coerceList coerces a list-valued input.
//
// JSON lists are taken as-is; a string is split on commas so the flat
// GET form can express lists. arity 0 means "one or more"; a non-zero
// arity is exact.
func coerceList(field string, desc *schema.FieldDescriptor, raw any, elemType schema.FieldType, arity int, allowNull bool) (record.Value, *schema.Error) {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case string:
		for _, part := range strings.Split(v, ",") {
			items = append(items, part)
		}
	default:
		return nil, schema.NewCoercionError(field, desc.Type, rawString(raw),
			"a list of values is required")
	}

	if arity > 0 && len(items) != arity {
		return nil, schema.NewCoercionError(field, desc.Type, rawString(raw),
			fmt.Sprintf("exactly %d values are required, got %d", arity, len(items)))
	}
	if len(items) == 0 {
		return nil, schema.NewCoercionError(field, desc.Type, rawString(raw),
			"at least one value is required")
	}

	list := make(record.List, len(items))
	for i, item := range items {
		if item == nil || (allowNull && item == "") {
			if !allowNull {
				return nil, schema.NewCoercionError(field, desc.Type, rawString(raw),
					"null is not valid here")
			}
			list[i] = record.Null{}
			continue
		}
		val, err := coerceScalar(desc, elemType, item)
		if err != nil {
			return nil, err
		}
		list[i] = val
	}
	return list, nil
}

// coerceScalar coerces a single raw value to a scalar of the given type.
// The effective type t may differ from the descriptor's own type for
// lookups like "length" that compare derived quantities.
func coerceScalar(desc *schema.FieldDescriptor, t schema.FieldType, raw any) (record.Value, *schema.Error) {
	field := desc.Path
	switch t {
	case schema.TypeText, schema.TypeIdentifier, schema.TypeStructured:
		return coerceString(field, t, raw)
	case schema.TypeChoice:
		return coerceChoice(desc, raw)
	case schema.TypeInteger:
		return coerceInt(field, raw)
	case schema.TypeFloat:
		return coerceFloat(field, raw)
	case schema.TypeDate:
		return coerceDate(field, raw)
	case schema.TypeYearMonth:
		return coerceYearMonth(field, raw)
	case schema.TypeBoolean:
		return coerceBool(field, t, raw)
	default:
		return nil, schema.NewCoercionError(field, t, rawString(raw),
			fmt.Sprintf("%s fields carry no comparable value", t))
	}
}

// coerceChoice matches a value case-insensitively against a closed choice
// set, returning the canonical casing.
func coerceChoice(desc *schema.FieldDescriptor, raw any) (record.Value, *schema.Error) {
	s, ok := raw.(string)
	if !ok {
		s = rawString(raw)
	}

	key := schema.Fold(strings.TrimSpace(s))
	for _, choice := range desc.Choices {
		if schema.Fold(choice) == key {
			return record.String(choice), nil
		}
	}
	return nil, schema.NewCoercionError(desc.Path, desc.Type, s,
		fmt.Sprintf("%q is not a valid choice", s))
}

func coerceString(field string, t schema.FieldType, raw any) (record.Value, *schema.Error) {
	switch v := raw.(type) {
	case string:
		return record.String(v), nil
	case json.Number:
		return record.String(v.String()), nil
	case bool:
		if v {
			return record.String("true"), nil
		}
		return record.String("false"), nil
	}
	return nil, schema.NewCoercionError(field, t, rawString(raw), "a string is required")
}

func coerceInt(field string, raw any) (record.Value, *schema.Error) {
	switch v := raw.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return record.Int(i), nil
		}
	case int:
		return record.Int(v), nil
	case int64:
		return record.Int(v), nil
	case float64:
		if v == float64(int64(v)) {
			return record.Int(int64(v)), nil
		}
	case string:
		// Full parse only: "5x" and "5.5" are errors, not truncations.
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return record.Int(i), nil
		}
	}
	return nil, schema.NewCoercionError(field, schema.TypeInteger, rawString(raw),
		"a whole number is required")
}

func coerceFloat(field string, raw any) (record.Value, *schema.Error) {
	switch v := raw.(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return record.Float(f), nil
		}
	case int:
		return record.Float(v), nil
	case int64:
		return record.Float(v), nil
	case float64:
		return record.Float(v), nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return record.Float(f), nil
		}
	}
	return nil, schema.NewCoercionError(field, schema.TypeFloat, rawString(raw),
		"a number is required")
}

func coerceDate(field string, raw any) (record.Value, *schema.Error) {
	s, ok := raw.(string)
	if !ok {
		return nil, schema.NewCoercionError(field, schema.TypeDate, rawString(raw),
			fmt.Sprintf("a date in %s form is required", record.DateLayout))
	}

	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "today") {
		return record.NewDate(time.Now().UTC()), nil
	}

	// Exact format match: partial dates like "2023" or "2023-06" are
	// ambiguous for a day-precision field and are rejected.
	t, err := time.Parse(record.DateLayout, s)
	if err != nil {
		return nil, schema.NewCoercionError(field, schema.TypeDate, s,
			fmt.Sprintf("a date in %s form is required", record.DateLayout))
	}
	return record.NewDate(t), nil
}

func coerceYearMonth(field string, raw any) (record.Value, *schema.Error) {
	s, ok := raw.(string)
	if !ok {
		return nil, schema.NewCoercionError(field, schema.TypeYearMonth, rawString(raw),
			fmt.Sprintf("a month in %s form is required", record.YearMonthLayout))
	}

	s = strings.TrimSpace(s)
	t, err := time.Parse(record.YearMonthLayout, s)
	if err != nil {
		return nil, schema.NewCoercionError(field, schema.TypeYearMonth, s,
			fmt.Sprintf("a month in %s form is required", record.YearMonthLayout))
	}
	return record.NewYearMonth(t), nil
}

func coerceBool(field string, t schema.FieldType, raw any) (record.Value, *schema.Error) {
	switch v := raw.(type) {
	case bool:
		return record.Bool(v), nil
	case string:
		if b, ok := boolTokens[strings.ToLower(strings.TrimSpace(v))]; ok {
			return record.Bool(b), nil
		}
	case json.Number:
		if b, ok := boolTokens[v.String()]; ok {
			return record.Bool(b), nil
		}
	}
	return nil, schema.NewCoercionError(field, t, rawString(raw),
		"a true/false value is required")
}

// rawString renders a raw input value for echoing in errors.
func rawString(raw any) string {
	if raw == nil {
		return "null"
	}
	if s, ok := raw.(string); ok {
		return s
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Sprintf("%v", raw)
	}
	return string(data)
}
