package query

import (
	"github.com/roach88/strata/internal/resolve"
	"github.com/roach88/strata/internal/schema"
)

// Validator checks every atom of a parsed expression against the field
// catalog through a resolver.
type Validator struct {
	resolver *resolve.Resolver
}

// NewValidator creates a validator bound to one request's resolver.
func NewValidator(r *resolve.Resolver) *Validator {
	return &Validator{resolver: r}
}

// Validate walks the expression and returns the validated tree, or the
// accumulated field-keyed errors.
//
// Validation is total: every atom is checked independently and surfaces
// its own errors; one bad atom never suppresses another's diagnostics.
// The tree is returned only when the error map is empty. A nil expression
// validates to a nil tree (the match-everything query).
func (v *Validator) Validate(e Expr) (QueryNode, schema.FieldErrors) {
	errs := schema.FieldErrors{}
	node := v.walk(e, errs)
	if !errs.Empty() {
		return nil, errs
	}
	return node, errs
}

// walk validates one expression node, recording errors as it goes.
func (v *Validator) walk(e Expr, errs schema.FieldErrors) QueryNode {
	switch expr := e.(type) {
	case nil:
		return nil

	case *AtomExpr:
		atom := v.validateAtom(expr, errs)
		if atom == nil {
			return nil
		}
		return &AtomNode{Atom: atom}

	case *GroupExpr:
		children := make([]QueryNode, 0, len(expr.Children))
		for _, child := range expr.Children {
			// Keep walking even when a child fails, so every atom in
			// the tree reports its own errors.
			if node := v.walk(child, errs); node != nil {
				children = append(children, node)
			}
		}
		switch expr.Op {
		case OpAnd:
			return &AndNode{Children: children}
		case OpOr:
			return &OrNode{Children: children}
		default:
			return &XorNode{Children: children}
		}

	case *NotExpr:
		child := v.walk(expr.Child, errs)
		if child == nil {
			return nil
		}
		return &NotNode{Child: child}

	default:
		return nil
	}
}

// validateAtom resolves, lookup-checks and coerces one raw atom.
func (v *Validator) validateAtom(atom *AtomExpr, errs schema.FieldErrors) *ValidatedAtom {
	res, err := v.resolver.Resolve(atom.Key, true)
	if err != nil {
		errs.Add(atom.Key, err)
		return nil
	}

	desc := res.Descriptor
	lookup := res.Lookup
	if lookup == "" {
		lookup = schema.LookupExact
	}

	// Relations carry no value of their own; only existence checks pass.
	if desc.IsRelation() && lookup != schema.LookupIsNull {
		errs.Add(atom.Key, schema.NewRelationFilterError(desc.Path))
		return nil
	}

	if !desc.HasLookup(lookup) {
		errs.Add(atom.Key, schema.NewInvalidLookupError(desc.Path, lookup, desc.Type))
		return nil
	}

	value, cerr := coerceValue(desc, lookup, atom.Value)
	if cerr != nil {
		errs.Add(atom.Key, cerr)
		return nil
	}

	return &ValidatedAtom{
		Key:    atom.Key,
		Field:  desc,
		Lookup: lookup,
		Value:  value,
	}
}
