// Package predicate compiles a validated query tree into the abstract,
// store-executable predicate form.
//
// The compiler does not execute anything: it emits a Predicate tree that
// is semantically equivalent to the validated query, together with the
// relation paths the store must eager-load and whether result
// deduplication is mandatory.
package predicate

import (
	"fmt"
	"strings"

	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// Predicate represents a compiled filter condition.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in store executors.
//
// Predicate types:
//   - True: matches every record (the empty query)
//   - Match: one field/lookup/value comparison
//   - And, Or, Xor: boolean combinators over one or more predicates
//   - Not: logical negation of one predicate
type Predicate interface {
	predicate() // Marker method - seals interface to this package
}

// True matches every record. The empty query compiles to it.
type True struct{}

func (True) predicate() {}

// Match is an atomic comparison against one field.
type Match struct {
	// Path is the canonical field path.
	Path string

	// RelationPath is the sequence of relation hops to reach the field.
	RelationPath []string

	// Type is the field's declared type.
	Type schema.FieldType

	// Lookup is the comparison operator.
	Lookup schema.Lookup

	// Value is the typed comparison value.
	Value record.Value
}

func (*Match) predicate() {}

// And matches when every child matches.
type And struct {
	Predicates []Predicate
}

func (*And) predicate() {}

// Or matches when at least one child matches.
type Or struct {
	Predicates []Predicate
}

func (*Or) predicate() {}

// Xor matches when an odd number of children match.
type Xor struct {
	Predicates []Predicate
}

func (*Xor) predicate() {}

// Not matches when its child does not.
//
// Negation stays an explicit node: nested NOTs compose by wrapping, never
// by rewriting children, so double negation cannot drift semantically.
type Not struct {
	Predicate Predicate
}

func (*Not) predicate() {}

// Render returns a canonical single-line rendering of a predicate,
// deterministic for identical inputs. Used in diagnostics and golden
// tests.
func Render(p Predicate) string {
	switch pred := p.(type) {
	case True:
		return "true()"
	case *Match:
		return fmt.Sprintf("%s(%s, %s)", pred.Lookup, pred.Path, renderValue(pred.Value))
	case *And:
		return renderGroup("and", pred.Predicates)
	case *Or:
		return renderGroup("or", pred.Predicates)
	case *Xor:
		return renderGroup("xor", pred.Predicates)
	case *Not:
		return fmt.Sprintf("not(%s)", Render(pred.Predicate))
	default:
		return fmt.Sprintf("<unknown %T>", p)
	}
}

func renderGroup(name string, children []Predicate) string {
	parts := make([]string, len(children))
	for i, child := range children {
		parts[i] = Render(child)
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

func renderValue(v record.Value) string {
	switch val := v.(type) {
	case record.String:
		return fmt.Sprintf("%q", string(val))
	case record.List:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = renderValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return record.Format(v)
	}
}
