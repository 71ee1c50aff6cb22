package schema

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes query and resolution errors.
type ErrorCode string

const (
	// ErrCodeParse indicates a malformed boolean expression shape.
	// Parse errors are fatal for the whole request.
	ErrCodeParse ErrorCode = "PARSE_ERROR"

	// ErrCodeUnknownField indicates a path that is not in the catalog or
	// not visible to the actor. The two cases are deliberately
	// indistinguishable.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeInvalidLookup indicates an operator not legal for the
	// field's type.
	ErrCodeInvalidLookup ErrorCode = "INVALID_LOOKUP"

	// ErrCodeCoercion indicates a value that cannot be parsed as the
	// field's type.
	ErrCodeCoercion ErrorCode = "TYPE_COERCION"

	// ErrCodeRelationFilter indicates an attempt to filter directly on a
	// relation container.
	ErrCodeRelationFilter ErrorCode = "RELATION_FILTER"

	// ErrCodeCardinality indicates a summary rejected by the cardinality
	// guard.
	ErrCodeCardinality ErrorCode = "CARDINALITY_EXCEEDED"
)

// Error is a structured query-subsystem error.
//
// Field carries the offending path as the client wrote it; Value echoes the
// rejected input for coercion errors.
type Error struct {
	Code    ErrorCode
	Field   string
	Message string
	Value   string
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Value != "":
		return fmt.Sprintf("%s: %s (field=%s, value=%s)", e.Code, e.Message, e.Field, e.Value)
	case e.Field != "":
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewUnknownFieldError creates an Error for an unresolvable path.
// The message never reveals whether the field exists but is out of scope.
func NewUnknownFieldError(field string) *Error {
	return &Error{
		Code:    ErrCodeUnknownField,
		Field:   field,
		Message: "this field is unknown",
	}
}

// NewInvalidLookupError creates an Error for an illegal field/lookup pair.
func NewInvalidLookupError(field string, lookup Lookup, t FieldType) *Error {
	return &Error{
		Code:    ErrCodeInvalidLookup,
		Field:   field,
		Message: fmt.Sprintf("lookup %q is not valid for a %s field", lookup, t),
	}
}

// NewCoercionError creates an Error for a value that failed coercion,
// echoing the attempted value.
func NewCoercionError(field string, t FieldType, value, reason string) *Error {
	return &Error{
		Code:    ErrCodeCoercion,
		Field:   field,
		Message: fmt.Sprintf("value cannot be read as %s: %s", t, reason),
		Value:   value,
	}
}

// NewCardinalityError creates an Error for a summary whose distinct-value
// count exceeds the guard ceiling.
func NewCardinalityError(field string, distinct, ceiling int64) *Error {
	return &Error{
		Code:    ErrCodeCardinality,
		Field:   field,
		Message: fmt.Sprintf("summary would group %d distinct values, over the limit of %d", distinct, ceiling),
	}
}

// NewRelationFilterError creates an Error for a direct filter on a relation.
func NewRelationFilterError(field string) *Error {
	return &Error{
		Code:    ErrCodeRelationFilter,
		Field:   field,
		Message: "cannot filter directly on a relation",
	}
}

// FieldErrors accumulates errors per offending field path.
//
// Validation never aborts on the first bad atom: every atom surfaces its own
// errors and the whole map is returned in one round trip.
type FieldErrors map[string][]*Error

// Add appends an error under its field path (or the given key when the
// error carries no field of its own).
func (fe FieldErrors) Add(key string, err *Error) {
	if err.Field != "" {
		key = err.Field
	}
	fe[key] = append(fe[key], err)
}

// Merge folds another accumulator into this one.
func (fe FieldErrors) Merge(other FieldErrors) {
	for k, errs := range other {
		fe[k] = append(fe[k], errs...)
	}
}

// Empty reports whether no errors were accumulated.
func (fe FieldErrors) Empty() bool {
	return len(fe) == 0
}

// Error implements the error interface with a deterministic rendering,
// fields in sorted order.
func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		for _, err := range fe[k] {
			parts = append(parts, fmt.Sprintf("%s: %s", k, err.Message))
		}
	}
	return strings.Join(parts, "; ")
}
