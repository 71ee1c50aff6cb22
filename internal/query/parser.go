package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/strata/internal/schema"
)

// KV is one flat GET-style query parameter.
type KV struct {
	Key   string
	Value string
}

// Parse decodes a JSON filter expression into its structural tree.
//
// Empty input is the empty query and parses to nil. Numbers are decoded
// with json.Number so integer values survive without a float round-trip.
func Parse(data []byte) (Expr, *schema.Error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, parseError(fmt.Sprintf("invalid JSON: %v", err), string(data))
	}
	return ParseValue(raw)
}

// ParseParams normalizes a flat parameter list into the expression an
// equivalent nested body would parse to: an implicit top-level AND of
// single-field atoms. Zero parameters yield the empty query.
//
// Normalization happens before the parser proper, so both request forms
// produce identical tree shapes.
func ParseParams(params []KV) (Expr, *schema.Error) {
	if len(params) == 0 {
		return nil, nil
	}

	children := make([]Expr, len(params))
	for i, p := range params {
		children[i] = &AtomExpr{Key: p.Key, Value: p.Value}
	}
	return &GroupExpr{Op: OpAnd, Children: children}, nil
}

// ParseValue parses an already-decoded JSON value.
//
// Parsing is purely structural: field names and types are not checked
// here. Every expression is a single-key object; reserved connective keys
// open groups, anything else is an atom.
func ParseValue(v any) (Expr, *schema.Error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, parseError("expression must be an object", fragment(v))
	}
	if len(obj) != 1 {
		return nil, parseError(
			fmt.Sprintf("expression must have exactly one key, got %d", len(obj)),
			fragment(v))
	}

	var key string
	var val any
	for k, item := range obj {
		key, val = k, item
	}

	if op, ok := connectives[key]; ok {
		return parseGroup(op, val)
	}
	if key == string(OpNot) {
		return parseNot(val)
	}
	return parseAtom(key, val)
}

// parseGroup parses an AND/OR/XOR group: a list of one or more
// sub-expressions. A reserved key mapping to anything but a list is a
// reserved-word conflict and is rejected, never silently read as a field.
func parseGroup(op Op, v any) (Expr, *schema.Error) {
	items, ok := v.([]any)
	if !ok {
		return nil, parseError(
			fmt.Sprintf("operator %q requires a list of expressions", op),
			fragment(v))
	}
	if len(items) == 0 {
		return nil, parseError(
			fmt.Sprintf("operator %q requires at least one expression", op),
			fragment(v))
	}

	children := make([]Expr, len(items))
	for i, item := range items {
		child, err := ParseValue(item)
		if err != nil {
			return nil, err
		}
		children[i] = child
	}
	return &GroupExpr{Op: op, Children: children}, nil
}

// parseNot parses a NOT node: exactly one sub-expression, which may itself
// be a group. A list is rejected even at length one, so the single-child
// contract is visible in the input shape.
func parseNot(v any) (Expr, *schema.Error) {
	if _, isList := v.([]any); isList {
		return nil, parseError(`operator "~" requires a single expression, not a list`, fragment(v))
	}

	child, err := ParseValue(v)
	if err != nil {
		return nil, err
	}
	return &NotExpr{Child: child}, nil
}

// parseAtom parses a leaf condition. Values may be scalars, null, or
// lists of scalars (for "in"/"range" lookups); nested objects are not
// values.
func parseAtom(key string, v any) (Expr, *schema.Error) {
	switch val := v.(type) {
	case map[string]any:
		return nil, parseError(
			fmt.Sprintf("value for %q must be a scalar or list, not an object", key),
			fragment(v))
	case []any:
		for _, item := range val {
			switch item.(type) {
			case map[string]any, []any:
				return nil, parseError(
					fmt.Sprintf("list value for %q must contain only scalars", key),
					fragment(v))
			}
		}
	}
	return &AtomExpr{Key: key, Value: v}, nil
}

// parseError builds a fatal structural error carrying the offending
// fragment.
func parseError(message, frag string) *schema.Error {
	return &schema.Error{
		Code:    schema.ErrCodeParse,
		Message: message,
		Value:   frag,
	}
}

// fragment renders an offending input fragment for error reporting.
func fragment(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
