package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// LoadError reports a problem in a CUE catalog definition.
type LoadError struct {
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadCatalog reads a CUE catalog definition from disk and builds the
// immutable Catalog.
//
// The definition shape:
//
//	project: "mycology"
//	fields: [
//		{name: "sample_id", type: "identifier"},
//		{name: "run", type: "relation", fields: [
//			{name: "run_name", type: "text"},
//		]},
//	]
//
// Fields is a list, not a struct, so declaration order is explicit.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	return CompileCatalog(v)
}

// CompileCatalog parses a CUE value into a Catalog.
// Uses the CUE SDK's Go API directly (not a CLI subprocess).
func CompileCatalog(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	projectVal := v.LookupPath(cue.ParsePath("project"))
	if !projectVal.Exists() {
		return nil, &LoadError{Field: "project", Message: "project is required", Pos: v.Pos()}
	}
	project, err := projectVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &LoadError{Field: "fields", Message: "fields is required", Pos: v.Pos()}
	}
	defs, err := parseFieldDefs(fieldsVal)
	if err != nil {
		return nil, err
	}

	return NewCatalog(project, defs)
}

// parseFieldDefs parses a CUE list of field definitions.
func parseFieldDefs(v cue.Value) ([]FieldDef, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var defs []FieldDef
	for iter.Next() {
		def, err := parseFieldDef(iter.Value())
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// parseFieldDef parses a single field definition struct.
func parseFieldDef(v cue.Value) (FieldDef, error) {
	var def FieldDef

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return def, &LoadError{Field: "name", Message: "field name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return def, formatCUEError(err)
	}
	def.Name = name

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return def, &LoadError{Field: name, Message: "field type is required", Pos: v.Pos()}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return def, formatCUEError(err)
	}
	fieldType, err := ParseFieldType(typeName)
	if err != nil {
		return def, &LoadError{Field: name, Message: err.Error(), Pos: typeVal.Pos()}
	}
	def.Type = fieldType

	if descVal := v.LookupPath(cue.ParsePath("description")); descVal.Exists() {
		if def.Description, err = descVal.String(); err != nil {
			return def, formatCUEError(err)
		}
	}

	if reqVal := v.LookupPath(cue.ParsePath("required")); reqVal.Exists() {
		if def.Required, err = reqVal.Bool(); err != nil {
			return def, formatCUEError(err)
		}
	}

	if def.Scopes, err = parseStringList(v, "scopes"); err != nil {
		return def, err
	}
	if def.Choices, err = parseStringList(v, "choices"); err != nil {
		return def, err
	}

	actionNames, err := parseStringList(v, "actions")
	if err != nil {
		return def, err
	}
	for _, actionName := range actionNames {
		action, err := ParseAction(actionName)
		if err != nil {
			return def, &LoadError{Field: name, Message: err.Error(), Pos: v.Pos()}
		}
		def.Actions = append(def.Actions, action)
	}

	if subVal := v.LookupPath(cue.ParsePath("fields")); subVal.Exists() {
		if def.Fields, err = parseFieldDefs(subVal); err != nil {
			return def, err
		}
	}

	return def, nil
}

// parseStringList parses an optional list-of-strings attribute.
func parseStringList(v cue.Value, attr string) ([]string, error) {
	listVal := v.LookupPath(cue.ParsePath(attr))
	if !listVal.Exists() {
		return nil, nil
	}

	iter, err := listVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// formatCUEError converts a CUE error into a readable LoadError.
func formatCUEError(err error) error {
	if cueErr, ok := err.(cueerrors.Error); ok {
		return &LoadError{
			Field:   "",
			Message: cueerrors.Details(cueErr, nil),
			Pos:     cueErr.Position(),
		}
	}
	return err
}
