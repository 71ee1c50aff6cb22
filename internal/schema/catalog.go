package schema

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// reservedNames are the boolean connective tokens of the query language.
// A field carrying one of these names would be ambiguous at parse time, so
// the collision is rejected when the catalog is built.
var reservedNames = map[string]bool{
	"&": true,
	"|": true,
	"^": true,
	"~": true,
}

// FieldDef is the declarative input for one field in a catalog definition.
// Relation fields nest their sub-record fields under Fields.
type FieldDef struct {
	Name        string
	Type        FieldType
	Description string
	Required    bool

	// Scopes lists the named scopes that expose this field.
	// Empty means the field belongs to the implicit base scope.
	Scopes []string

	// Actions lists the permitted actions. Empty defaults to view+filter.
	Actions []Action

	// Choices restricts a choice field to a closed value set.
	Choices []string

	// Fields holds the sub-record fields of a relation.
	Fields []FieldDef
}

// FieldDescriptor describes one resolvable field of a project.
//
// Descriptors are immutable once the catalog is built.
type FieldDescriptor struct {
	// Path is the canonical full path, segments joined by Separator.
	Path string

	// Name is the final path segment in canonical case.
	Name string

	// Type determines the legal lookups and value coercion.
	Type FieldType

	// Description is free text for field listings.
	Description string

	// Required marks fields that must be present when adding records.
	Required bool

	// Scopes lists the named scopes exposing the field. Empty means the
	// field is in the implicit base scope.
	Scopes []string

	// Actions is the set of permitted actions.
	Actions map[Action]bool

	// RelationPath is the sequence of relation hops traversed to reach the
	// field. Empty for top-level fields.
	RelationPath []string

	// Choices is the closed value set of a choice field.
	Choices []string
}

// Lookups returns the legal lookups for the field, in table order.
func (d *FieldDescriptor) Lookups() []Lookup {
	return TypeLookups(d.Type)
}

// HasLookup reports whether a lookup is legal for the field's type.
func (d *FieldDescriptor) HasLookup(l Lookup) bool {
	for _, have := range typeLookups[d.Type] {
		if have == l {
			return true
		}
	}
	return false
}

// Allows reports whether the field permits an action.
func (d *FieldDescriptor) Allows(a Action) bool {
	return d.Actions[a]
}

// IsRelation reports whether the field is a nested sub-record container.
func (d *FieldDescriptor) IsRelation() bool {
	return d.Type == TypeRelation
}

// Nested reports whether the field is reached through at least one
// relation hop.
func (d *FieldDescriptor) Nested() bool {
	return len(d.RelationPath) > 0
}

// Catalog is the immutable field registry of one project.
//
// Field order preserves declaration order from the schema definition, which
// keeps field listings and projections deterministic.
type Catalog struct {
	project string
	fields  []*FieldDescriptor
	byFold  map[string]*FieldDescriptor
}

// Fold case-folds a path for catalog matching.
// A fresh Caser per call: cases.Caser is stateful and not goroutine-safe,
// and the catalog is read concurrently.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// NewCatalog builds a catalog from field definitions.
//
// Build-time validation rejects reserved connective names, names containing
// the path separator, duplicate names (case-insensitively), choice fields
// without choices, and sub-fields on non-relation fields.
func NewCatalog(project string, defs []FieldDef) (*Catalog, error) {
	if project == "" {
		return nil, fmt.Errorf("catalog requires a project name")
	}

	c := &Catalog{
		project: project,
		byFold:  map[string]*FieldDescriptor{},
	}
	if err := c.addFields(defs, nil); err != nil {
		return nil, err
	}
	return c, nil
}

// addFields walks a definition level, appending descriptors in declaration
// order. parents carries the relation hops down recursive calls.
func (c *Catalog) addFields(defs []FieldDef, parents []string) error {
	for _, def := range defs {
		if err := c.checkName(def); err != nil {
			return err
		}

		segments := append(append([]string{}, parents...), def.Name)
		path := strings.Join(segments, Separator)

		fold := Fold(path)
		if _, exists := c.byFold[fold]; exists {
			return fmt.Errorf("field %q: duplicate path (case-insensitive)", path)
		}

		actions := def.Actions
		if len(actions) == 0 {
			actions = []Action{ActionView, ActionFilter}
		}
		actionSet := make(map[Action]bool, len(actions))
		for _, a := range actions {
			actionSet[a] = true
		}

		relationPath := make([]string, len(parents))
		copy(relationPath, parents)

		desc := &FieldDescriptor{
			Path:         path,
			Name:         def.Name,
			Type:         def.Type,
			Description:  def.Description,
			Required:     def.Required,
			Scopes:       append([]string{}, def.Scopes...),
			Actions:      actionSet,
			RelationPath: relationPath,
			Choices:      append([]string{}, def.Choices...),
		}

		c.fields = append(c.fields, desc)
		c.byFold[fold] = desc

		if def.Type == TypeRelation {
			if err := c.addFields(def.Fields, segments); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkName validates a single field definition's name and shape.
func (c *Catalog) checkName(def FieldDef) error {
	if def.Name == "" {
		return fmt.Errorf("field with empty name")
	}
	if reservedNames[def.Name] {
		return fmt.Errorf("field %q: name collides with a reserved query token", def.Name)
	}
	if strings.Contains(def.Name, Separator) {
		return fmt.Errorf("field %q: name cannot contain %q", def.Name, Separator)
	}
	if strings.HasSuffix(def.Name, "_") {
		return fmt.Errorf("field %q: name cannot end with an underscore", def.Name)
	}
	if _, err := ParseFieldType(string(def.Type)); err != nil {
		return fmt.Errorf("field %q: %w", def.Name, err)
	}
	if def.Type == TypeChoice && len(def.Choices) == 0 {
		return fmt.Errorf("field %q: choice field requires choices", def.Name)
	}
	if def.Type != TypeRelation && len(def.Fields) > 0 {
		return fmt.Errorf("field %q: only relations may declare sub-fields", def.Name)
	}
	if def.Type == TypeRelation && len(def.Fields) == 0 {
		return fmt.Errorf("field %q: relation requires sub-fields", def.Name)
	}
	return nil
}

// Project returns the project name the catalog describes.
func (c *Catalog) Project() string {
	return c.project
}

// Fields returns every descriptor in declaration order.
// The returned slice is shared; callers must not modify it.
func (c *Catalog) Fields() []*FieldDescriptor {
	return c.fields
}

// Find returns the descriptor for a full path, matching case-insensitively.
// The returned descriptor preserves canonical case.
func (c *Catalog) Find(path string) (*FieldDescriptor, bool) {
	desc, ok := c.byFold[Fold(path)]
	return desc, ok
}
