package query

import (
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// Op is a boolean connective token.
type Op string

const (
	OpAnd Op = "&"
	OpOr  Op = "|"
	OpXor Op = "^"
	OpNot Op = "~"
)

// connectives maps reserved keys to group operators. NOT is handled
// separately because it takes a single child, not a list.
var connectives = map[string]Op{
	string(OpAnd): OpAnd,
	string(OpOr):  OpOr,
	string(OpXor): OpXor,
}

// Expr is the structural parse tree of a filter expression.
//
// This is a sealed interface - only types in this package implement it.
// Expr carries raw, unvalidated atoms; Validate turns an Expr into a
// QueryNode of typed atoms.
type Expr interface {
	expr() // Marker method - seals interface to this package
}

// AtomExpr is a raw leaf condition: a field key (possibly carrying a
// lookup suffix) and an uninterpreted value.
type AtomExpr struct {
	Key   string
	Value any
}

func (*AtomExpr) expr() {}

// GroupExpr is an AND/OR/XOR group with one or more children.
type GroupExpr struct {
	Op       Op
	Children []Expr
}

func (*GroupExpr) expr() {}

// NotExpr negates exactly one child expression.
type NotExpr struct {
	Child Expr
}

func (*NotExpr) expr() {}

// ValidatedAtom is a leaf condition that has passed field resolution,
// lookup legality and value coercion.
//
// Invariant: never constructed unless Lookup is legal for the field's type
// and Value coerced successfully.
type ValidatedAtom struct {
	// Key is the original client-supplied key, kept for error reporting.
	Key string

	// Field is the resolved descriptor, canonical case.
	Field *schema.FieldDescriptor

	// Lookup is the operator, defaulted to "exact" when none was given.
	Lookup schema.Lookup

	// Value is the coerced typed value.
	Value record.Value
}

// QueryNode is the validated filter tree handed to the compiler.
//
// This is a sealed interface - only types in this package implement it.
// A nil QueryNode is the empty query: it matches everything.
type QueryNode interface {
	queryNode() // Marker method - seals interface to this package
}

// AtomNode wraps a validated leaf condition.
type AtomNode struct {
	Atom *ValidatedAtom
}

func (*AtomNode) queryNode() {}

// AndNode requires every child to match.
type AndNode struct {
	Children []QueryNode
}

func (*AndNode) queryNode() {}

// OrNode requires at least one child to match.
type OrNode struct {
	Children []QueryNode
}

func (*OrNode) queryNode() {}

// XorNode requires an odd number of children to match.
type XorNode struct {
	Children []QueryNode
}

func (*XorNode) queryNode() {}

// NotNode inverts its single child.
type NotNode struct {
	Child QueryNode
}

func (*NotNode) queryNode() {}
