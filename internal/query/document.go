package query

import (
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// CoerceStored coerces one decoded document value to its field's
// canonical typed form, through the same scalar coercions filter atoms
// go through. A record that passes ingest therefore matches the
// equality filter for each of its values: choices take their canonical
// casing, numeric strings become numbers, date strings become dates.
//
// Structured fields are opaque and pass through verbatim. Null is
// always legal here; presence is the required-field check's concern.
func CoerceStored(desc *schema.FieldDescriptor, v record.Value) (record.Value, *schema.Error) {
	if record.IsNull(v) {
		return record.Null{}, nil
	}

	switch desc.Type {
	case schema.TypeRelation:
		return nil, schema.NewCoercionError(desc.Path, desc.Type, record.Format(v),
			"a list of sub-records is required")

	case schema.TypeStructured:
		return v, nil

	case schema.TypeArray:
		list, ok := v.(record.List)
		if !ok {
			return nil, schema.NewCoercionError(desc.Path, desc.Type, record.Format(v),
				"a list of values is required")
		}
		out := make(record.List, len(list))
		for i, item := range list {
			val, err := coerceScalar(desc, schema.TypeText, storedRaw(item))
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	default:
		return coerceScalar(desc, desc.Type, storedRaw(v))
	}
}

// storedRaw converts a decoded value back to the raw shape the scalar
// coercions accept. Date-form strings in a text field arrive here as
// Date values from the structural decoder and turn back into strings.
func storedRaw(v record.Value) any {
	switch val := v.(type) {
	case record.String:
		return string(val)
	case record.Int:
		return int64(val)
	case record.Float:
		return float64(val)
	case record.Bool:
		return bool(val)
	case record.Date:
		return val.String()
	case record.YearMonth:
		return val.String()
	default:
		return record.Format(v)
	}
}
