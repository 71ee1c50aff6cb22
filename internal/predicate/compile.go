package predicate

import (
	"sort"
	"strings"

	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// Compiled is the full compiler output for one request.
type Compiled struct {
	// Predicate is the executable filter, semantically equivalent to the
	// validated tree it was compiled from.
	Predicate Predicate

	// RelationPaths lists every relation path some atom traverses, sorted,
	// including intermediate hops. The store eager-loads these.
	RelationPaths []string

	// Distinct reports that result deduplication is mandatory post-filter:
	// some atom traverses a one-to-many relation, so a record with several
	// matching sub-rows would otherwise appear once per match.
	Distinct bool
}

// Compile walks a validated query tree bottom-up into a Predicate.
//
// A nil tree is the empty query and compiles to True. Null-aware lookups
// are rewritten here, once, so the store's executor only ever sees plain
// comparisons:
//
//	ne null      → not(isnull true)
//	ne v         → not(exact v)
//	in [..null]  → or(in [non-null..], isnull true)
//	notin vs     → not(in vs)  (null-aware as above)
func Compile(node query.QueryNode) *Compiled {
	c := &compiler{relations: map[string]bool{}}
	pred := c.compileNode(node)
	if pred == nil {
		pred = True{}
	}

	paths := make([]string, 0, len(c.relations))
	for path := range c.relations {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	return &Compiled{
		Predicate:     pred,
		RelationPaths: paths,
		Distinct:      len(paths) > 0,
	}
}

// compiler accumulates traversed relation paths during compilation.
type compiler struct {
	relations map[string]bool
}

// compileNode translates one validated node.
func (c *compiler) compileNode(node query.QueryNode) Predicate {
	switch n := node.(type) {
	case nil:
		return nil
	case *query.AtomNode:
		return c.compileAtom(n.Atom)
	case *query.AndNode:
		return &And{Predicates: c.compileChildren(n.Children)}
	case *query.OrNode:
		return &Or{Predicates: c.compileChildren(n.Children)}
	case *query.XorNode:
		return &Xor{Predicates: c.compileChildren(n.Children)}
	case *query.NotNode:
		// Negation by wrapping, not by rewriting the child: NOT(NOT(X))
		// stays structurally X under double negation semantics.
		return &Not{Predicate: c.compileNode(n.Child)}
	default:
		return nil
	}
}

func (c *compiler) compileChildren(children []query.QueryNode) []Predicate {
	out := make([]Predicate, 0, len(children))
	for _, child := range children {
		if pred := c.compileNode(child); pred != nil {
			out = append(out, pred)
		}
	}
	return out
}

// compileAtom translates one validated atom, applying null-aware rewrites
// and recording traversed relation paths.
func (c *compiler) compileAtom(atom *query.ValidatedAtom) Predicate {
	desc := atom.Field
	c.recordRelations(desc)

	match := func(lookup schema.Lookup, value record.Value) *Match {
		return &Match{
			Path:         desc.Path,
			RelationPath: desc.RelationPath,
			Type:         desc.Type,
			Lookup:       lookup,
			Value:        value,
		}
	}

	switch atom.Lookup {
	case schema.LookupNE:
		if record.IsNull(atom.Value) {
			// "not equal to null" means the value is present.
			return &Not{Predicate: match(schema.LookupIsNull, record.Bool(true))}
		}
		return &Not{Predicate: match(schema.LookupExact, atom.Value)}

	case schema.LookupIn:
		return c.compileIn(match, atom.Value)

	case schema.LookupNotIn:
		return &Not{Predicate: c.compileIn(match, atom.Value)}

	default:
		return match(atom.Lookup, atom.Value)
	}
}

// compileIn builds the null-aware membership predicate.
func (c *compiler) compileIn(match func(schema.Lookup, record.Value) *Match, value record.Value) Predicate {
	list, ok := value.(record.List)
	if !ok {
		return match(schema.LookupIn, value)
	}

	var nonNull record.List
	hasNull := false
	for _, item := range list {
		if record.IsNull(item) {
			hasNull = true
			continue
		}
		nonNull = append(nonNull, item)
	}

	if !hasNull {
		return match(schema.LookupIn, list)
	}
	if len(nonNull) == 0 {
		return match(schema.LookupIsNull, record.Bool(true))
	}
	return &Or{Predicates: []Predicate{
		match(schema.LookupIn, nonNull),
		match(schema.LookupIsNull, record.Bool(true)),
	}}
}

// recordRelations accumulates the relation hops an atom traverses,
// including every intermediate prefix so the store can eager-load the
// whole chain. A relation-typed atom (existence check) contributes its own
// path as well.
func (c *compiler) recordRelations(desc *schema.FieldDescriptor) {
	for i := range desc.RelationPath {
		c.relations[strings.Join(desc.RelationPath[:i+1], schema.Separator)] = true
	}
	if desc.IsRelation() {
		c.relations[desc.Path] = true
	}
}
