package schema

import "fmt"

// Separator joins path segments and lookup suffixes in user-facing field
// keys, e.g. "run__run_name" or "start__gte".
const Separator = "__"

// FieldType is the closed enumeration of field types.
type FieldType string

const (
	// TypeText is free text.
	TypeText FieldType = "text"

	// TypeChoice is text restricted to a per-field closed choice set.
	TypeChoice FieldType = "choice"

	// TypeInteger is a 64-bit integer.
	TypeInteger FieldType = "integer"

	// TypeFloat is a 64-bit float.
	TypeFloat FieldType = "float"

	// TypeDate is a calendar day in YYYY-MM-DD form.
	TypeDate FieldType = "date"

	// TypeYearMonth is a calendar month in YYYY-MM form.
	TypeYearMonth FieldType = "yearmonth"

	// TypeBoolean is true/false.
	TypeBoolean FieldType = "bool"

	// TypeIdentifier is an opaque record identifier.
	TypeIdentifier FieldType = "identifier"

	// TypeRelation is a container for nested one-to-many sub-records.
	// Relations are not leaf fields: they carry no value of their own and
	// support only existence checks.
	TypeRelation FieldType = "relation"

	// TypeStructured is an opaque JSON document stored verbatim.
	TypeStructured FieldType = "structured"

	// TypeArray is an ordered list of scalar values.
	TypeArray FieldType = "array"
)

// ParseFieldType converts a type name from a schema definition.
func ParseFieldType(s string) (FieldType, error) {
	switch FieldType(s) {
	case TypeText, TypeChoice, TypeInteger, TypeFloat, TypeDate,
		TypeYearMonth, TypeBoolean, TypeIdentifier, TypeRelation,
		TypeStructured, TypeArray:
		return FieldType(s), nil
	}
	return "", fmt.Errorf("unknown field type %q", s)
}

// Action is an operation an actor may be permitted to perform on a field.
type Action string

const (
	ActionView   Action = "view"
	ActionFilter Action = "filter"
	ActionAdd    Action = "add"
	ActionChange Action = "change"
	ActionDelete Action = "delete"
)

// ParseAction converts an action name from a schema or grants definition.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionView, ActionFilter, ActionAdd, ActionChange, ActionDelete:
		return Action(s), nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Lookup is a named comparison operator applicable to a field,
// e.g. "gte", "contains", "isnull".
type Lookup string

const (
	LookupExact       Lookup = "exact"
	LookupNE          Lookup = "ne"
	LookupIn          Lookup = "in"
	LookupNotIn       Lookup = "notin"
	LookupContains    Lookup = "contains"
	LookupStartsWith  Lookup = "startswith"
	LookupEndsWith    Lookup = "endswith"
	LookupIExact      Lookup = "iexact"
	LookupIContains   Lookup = "icontains"
	LookupIStartsWith Lookup = "istartswith"
	LookupIEndsWith   Lookup = "iendswith"
	LookupRegex       Lookup = "regex"
	LookupIRegex      Lookup = "iregex"
	LookupLength      Lookup = "length"
	LookupLengthIn    Lookup = "length__in"
	LookupLengthRange Lookup = "length__range"
	LookupLT          Lookup = "lt"
	LookupLTE         Lookup = "lte"
	LookupGT          Lookup = "gt"
	LookupGTE         Lookup = "gte"
	LookupRange       Lookup = "range"
	LookupYear        Lookup = "year"
	LookupYearIn      Lookup = "year__in"
	LookupYearRange   Lookup = "year__range"
	LookupIsNull      Lookup = "isnull"
)

// typeLookups is the global lookup legality table, indexed by field type.
// Every lookup a descriptor reports legal is drawn from here.
var typeLookups = map[FieldType][]Lookup{
	TypeText: {
		LookupExact, LookupNE, LookupIn, LookupNotIn,
		LookupContains, LookupStartsWith, LookupEndsWith,
		LookupIExact, LookupIContains, LookupIStartsWith, LookupIEndsWith,
		LookupRegex, LookupIRegex,
		LookupLength, LookupLengthIn, LookupLengthRange,
		LookupIsNull,
	},
	TypeChoice: {
		LookupExact, LookupNE, LookupIn, LookupNotIn, LookupIsNull,
	},
	TypeInteger: {
		LookupExact, LookupNE, LookupIn, LookupNotIn,
		LookupLT, LookupLTE, LookupGT, LookupGTE, LookupRange,
		LookupIsNull,
	},
	TypeFloat: {
		LookupExact, LookupNE, LookupIn, LookupNotIn,
		LookupLT, LookupLTE, LookupGT, LookupGTE, LookupRange,
		LookupIsNull,
	},
	TypeDate: {
		LookupExact, LookupNE, LookupIn, LookupNotIn,
		LookupLT, LookupLTE, LookupGT, LookupGTE, LookupRange,
		LookupYear, LookupYearIn, LookupYearRange,
		LookupIsNull,
	},
	TypeYearMonth: {
		LookupExact, LookupNE, LookupIn, LookupNotIn,
		LookupLT, LookupLTE, LookupGT, LookupGTE, LookupRange,
		LookupYear, LookupYearIn, LookupYearRange,
		LookupIsNull,
	},
	TypeBoolean: {
		LookupExact, LookupNE, LookupIn, LookupIsNull,
	},
	TypeIdentifier: {
		LookupExact, LookupNE, LookupIn, LookupNotIn, LookupIsNull,
	},
	// Relations carry no value of their own: existence checks only.
	TypeRelation: {
		LookupIsNull,
	},
	TypeStructured: {
		LookupExact, LookupNE, LookupIsNull,
	},
	TypeArray: {
		LookupContains, LookupLength, LookupLengthIn, LookupLengthRange,
		LookupIsNull,
	},
}

// allLookups is the union of every type's lookups, used when splitting a
// field key into path and lookup suffix.
var allLookups = func() map[Lookup]bool {
	all := map[Lookup]bool{}
	for _, lookups := range typeLookups {
		for _, l := range lookups {
			all[l] = true
		}
	}
	return all
}()

// KnownLookup reports whether name is a lookup for any field type.
func KnownLookup(name string) bool {
	return allLookups[Lookup(name)]
}

// TypeLookups returns the legal lookups for a field type, in table order.
func TypeLookups(t FieldType) []Lookup {
	lookups := typeLookups[t]
	out := make([]Lookup, len(lookups))
	copy(out, lookups)
	return out
}

// FieldTypes returns every field type in a stable listing order.
func FieldTypes() []FieldType {
	return []FieldType{
		TypeIdentifier, TypeText, TypeChoice, TypeInteger, TypeFloat,
		TypeDate, TypeYearMonth, TypeBoolean, TypeRelation,
		TypeStructured, TypeArray,
	}
}
