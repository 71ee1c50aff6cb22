// Package resolve turns user-supplied field keys into catalog descriptors,
// enforcing scope and action visibility.
//
// Resolution is three-tier: base fields are visible to anyone granted the
// action; fields in named scopes require that scope to be both requested
// and granted; everything else is unknown. A field that exists but is out
// of scope resolves exactly like a field that does not exist, so the error
// surface never leaks schema shape.
package resolve

import (
	"strings"

	"github.com/roach88/strata/internal/schema"
)

// Resolved is the outcome of resolving one field key.
type Resolved struct {
	// Descriptor is the catalog entry, canonical case preserved.
	Descriptor *schema.FieldDescriptor

	// Lookup is the suffix split off the key, empty when none was given.
	// The validator defaults an empty lookup to "exact".
	Lookup schema.Lookup
}

// Resolver resolves field keys for one actor's request: a catalog plus the
// effective scope set for one action.
//
// Resolvers are cheap per-request objects; the catalog behind them is the
// shared immutable state.
type Resolver struct {
	catalog *schema.Catalog
	action  schema.Action
	scopes  map[string]bool
}

// New builds a resolver for an action.
//
// granted is the actor's scope set from the authorization collaborator;
// requested is the scope directive from the request. The effective named
// scope set is their intersection: requesting an ungranted scope adds
// nothing, and is deliberately not an error (information hiding). The base
// scope is always implicit.
func New(catalog *schema.Catalog, action schema.Action, granted, requested []string) *Resolver {
	grantedSet := make(map[string]bool, len(granted))
	for _, s := range granted {
		grantedSet[s] = true
	}

	effective := map[string]bool{}
	for _, s := range requested {
		if grantedSet[s] {
			effective[s] = true
		}
	}

	return &Resolver{
		catalog: catalog,
		action:  action,
		scopes:  effective,
	}
}

// visible reports whether a descriptor is in scope for the resolver's
// action and effective scopes.
func (r *Resolver) visible(desc *schema.FieldDescriptor) bool {
	if !desc.Allows(r.action) {
		return false
	}
	if len(desc.Scopes) == 0 {
		return true // base scope
	}
	for _, s := range desc.Scopes {
		if r.scopes[s] {
			return true
		}
	}
	return false
}

// Resolve resolves a field key, optionally carrying a lookup suffix.
//
// The key is split on the path separator and walked against the catalog.
// A longer field path always wins over a lookup read: "tests__length"
// names the nested field when one exists, even though "length" is also a
// lookup. Only the entire remaining suffix can be a lookup, so the
// multi-segment lookups like "length__range" split correctly without any
// backtracking. With allowLookup false a lookup suffix is just an invalid
// extra path segment.
//
// Unknown segments, invisible fields and leftover suffixes all return the
// same UnknownField error against the original key.
func (r *Resolver) Resolve(key string, allowLookup bool) (*Resolved, *schema.Error) {
	// A trailing underscore would make the segment split ambiguous.
	if key == "" || strings.HasSuffix(key, "_") {
		return nil, schema.NewUnknownFieldError(key)
	}

	segments := strings.Split(key, schema.Separator)
	for i := range segments {
		path := strings.Join(segments[:i+1], schema.Separator)
		desc, ok := r.catalog.Find(path)
		if !ok {
			return nil, schema.NewUnknownFieldError(key)
		}

		rest := strings.Join(segments[i+1:], schema.Separator)
		if rest == "" {
			if !r.visible(desc) {
				return nil, schema.NewUnknownFieldError(key)
			}
			return &Resolved{Descriptor: desc}, nil
		}

		// A deeper field path beats a lookup read of the same segments.
		if desc.IsRelation() {
			deeper := strings.Join(segments[:i+2], schema.Separator)
			if _, ok := r.catalog.Find(deeper); ok {
				continue
			}
		}

		if schema.KnownLookup(rest) {
			if !allowLookup {
				return nil, schema.NewUnknownFieldError(key)
			}
			if !r.visible(desc) {
				return nil, schema.NewUnknownFieldError(key)
			}
			return &Resolved{Descriptor: desc, Lookup: schema.Lookup(rest)}, nil
		}

		if !desc.IsRelation() {
			// A leaf with leftover segments that are not a lookup.
			return nil, schema.NewUnknownFieldError(key)
		}
	}
	return nil, schema.NewUnknownFieldError(key)
}

// ResolveFields resolves a batch of keys, accumulating per-key errors
// instead of stopping at the first failure.
func (r *Resolver) ResolveFields(keys []string, allowLookup bool) (map[string]*Resolved, schema.FieldErrors) {
	resolved := map[string]*Resolved{}
	errs := schema.FieldErrors{}

	for _, key := range keys {
		res, err := r.Resolve(key, allowLookup)
		if err != nil {
			errs.Add(key, err)
			continue
		}
		resolved[key] = res
	}
	return resolved, errs
}

// VisibleFields returns every visible field path in catalog declaration
// order. The order is stable across calls with identical inputs.
func (r *Resolver) VisibleFields() []string {
	var paths []string
	for _, desc := range r.catalog.Fields() {
		if r.visible(desc) {
			paths = append(paths, desc.Path)
		}
	}
	return paths
}

// Project applies include/exclude directives to the visible field set,
// preserving declaration order.
//
// An include keeps a field when it equals the include path or sits beneath
// it; an exclude removes on the same rule. Naming the same path in both
// directives is an error, and every directive path must name a visible
// field: a path that resolves to nothing reports UnknownField instead of
// silently projecting an empty set.
func (r *Resolver) Project(include, exclude []string) ([]string, *schema.Error) {
	for _, inc := range include {
		for _, exc := range exclude {
			if schema.Fold(inc) == schema.Fold(exc) {
				return nil, &schema.Error{
					Code:    schema.ErrCodeParse,
					Field:   inc,
					Message: "field cannot be both included and excluded",
				}
			}
		}
	}

	for _, p := range include {
		if _, err := r.Resolve(p, false); err != nil {
			return nil, err
		}
	}
	for _, p := range exclude {
		if _, err := r.Resolve(p, false); err != nil {
			return nil, err
		}
	}

	fields := r.VisibleFields()

	if len(include) > 0 {
		var kept []string
		for _, f := range fields {
			for _, inc := range include {
				if underPath(f, inc) {
					kept = append(kept, f)
					break
				}
			}
		}
		fields = kept
	}

	if len(exclude) > 0 {
		var kept []string
		for _, f := range fields {
			excluded := false
			for _, exc := range exclude {
				if underPath(f, exc) {
					excluded = true
					break
				}
			}
			if !excluded {
				kept = append(kept, f)
			}
		}
		fields = kept
	}

	return fields, nil
}

// underPath reports whether field equals prefix or sits beneath it,
// matching case-insensitively like the catalog does.
func underPath(field, prefix string) bool {
	f, p := schema.Fold(field), schema.Fold(prefix)
	return f == p || strings.HasPrefix(f, p+schema.Separator)
}
