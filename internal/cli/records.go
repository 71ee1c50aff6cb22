package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor  string
		scopes []string
	)

	cmd := &cobra.Command{
		Use:   "insert <document>",
		Short: "Insert a record document",
		Long: `Insert one JSON record document ("-" reads stdin, "@path" reads a
file). Every field in the document must resolve in the catalog and be
visible to the actor for the add action.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(rootOpts, cmd, args[0], actor, scopes)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "request a named scope (repeatable)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runInsert(opts *RootOptions, cmd *cobra.Command, arg, actor string, scopes []string) error {
	formatter := formatterFor(opts, cmd)

	env, err := openEnv(opts, true)
	if err != nil {
		return err
	}
	defer env.Close()

	resolver, err := env.resolverFor(actor, schema.ActionAdd, scopes)
	if err != nil {
		return err
	}

	data, err := readInput(cmd, arg)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "read document", Err: err}
	}

	rec := record.New()
	if err := json.Unmarshal(data, rec); err != nil {
		return formatter.RejectOne(&schema.Error{
			Code:    schema.ErrCodeParse,
			Message: fmt.Sprintf("malformed document: %v", err),
		})
	}

	// Every path in the document must be addable by this actor. Lookup
	// suffixes are meaningless in documents.
	_, errs := resolver.ResolveFields(recordPaths(rec, nil), false)
	canonicalise(env.Catalog, rec, nil)
	coerceDocument(env.Catalog, rec, nil, errs)
	requiredErrors(env.Catalog, rec, errs)
	if !errs.Empty() {
		return formatter.Reject(errs)
	}

	stored, err := env.Store.Insert(cmd.Context(), env.Catalog.Project(), rec)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "insert record", Err: err}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"id": stored.ID, "created": stored.Created})
	}
	fmt.Fprintln(formatter.Writer, stored.ID)
	return nil
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor   string
		scopes  []string
		include []string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch one record by id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(rootOpts, cmd, args[0], actor, scopes, include, exclude)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "request a named scope (repeatable)")
	cmd.Flags().StringArrayVar(&include, "include", nil, "keep only fields at or under this path (repeatable)")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "drop fields at or under this path (repeatable)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runGet(opts *RootOptions, cmd *cobra.Command, id, actor string, scopes, include, exclude []string) error {
	formatter := formatterFor(opts, cmd)

	env, err := openEnv(opts, true)
	if err != nil {
		return err
	}
	defer env.Close()

	resolver, err := env.resolverFor(actor, schema.ActionView, scopes)
	if err != nil {
		return err
	}
	visible, perr := resolver.Project(include, exclude)
	if perr != nil {
		return formatter.RejectOne(perr)
	}

	stored, err := env.Store.Get(cmd.Context(), env.Catalog.Project(), id)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("record %s not found", id))
	}
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "get record", Err: err}
	}

	doc, err := json.Marshal(projectRecord(stored.Record, visible, nil))
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "render record", Err: err}
	}

	if formatter.Format == "json" {
		return formatter.Success(RecordResult{ID: stored.ID, Created: stored.Created, Record: doc})
	}
	fmt.Fprintf(formatter.Writer, "%s\n", doc)
	return nil
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one record by id",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, cmd, args[0], actor)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runDelete(opts *RootOptions, cmd *cobra.Command, id, actor string) error {
	formatter := formatterFor(opts, cmd)

	env, err := openEnv(opts, true)
	if err != nil {
		return err
	}
	defer env.Close()

	if _, err := env.resolverFor(actor, schema.ActionDelete, nil); err != nil {
		return err
	}

	err = env.Store.Delete(cmd.Context(), env.Catalog.Project(), id)
	if errors.Is(err, store.ErrNotFound) {
		return NewExitError(ExitCommandError, fmt.Sprintf("record %s not found", id))
	}
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "delete record", Err: err}
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"id": id, "deleted": true})
	}
	fmt.Fprintf(formatter.Writer, "deleted %s\n", id)
	return nil
}

// canonicalise rewrites a document's keys to their catalog casing so
// stored records match the canonical paths predicates and summaries
// carry. Keys that do not resolve are left alone; they are rejected
// before the record is stored.
func canonicalise(catalog *schema.Catalog, rec *record.Record, prefix []string) {
	renames := map[string]string{}
	for name := range rec.Fields {
		if desc, ok := catalog.Find(joinPath(prefix, name)); ok && desc.Name != name {
			renames[name] = desc.Name
		}
	}
	for from, to := range renames {
		rec.Fields[to] = rec.Fields[from]
		delete(rec.Fields, from)
	}

	renames = map[string]string{}
	for name := range rec.Nested {
		if desc, ok := catalog.Find(joinPath(prefix, name)); ok && desc.Name != name {
			renames[name] = desc.Name
		}
	}
	for from, to := range renames {
		rec.Nested[to] = rec.Nested[from]
		delete(rec.Nested, from)
	}

	for name, subs := range rec.Nested {
		subPrefix := append(append([]string{}, prefix...), name)
		for _, sub := range subs {
			canonicalise(catalog, sub, subPrefix)
		}
	}
}

// coerceDocument rewrites every scalar in a document to its field's
// canonical typed form, accumulating an error per value that fails its
// type's coercion. Keys that do not resolve are skipped here; path
// resolution already rejected them.
func coerceDocument(catalog *schema.Catalog, rec *record.Record, prefix []string, errs schema.FieldErrors) {
	for name, v := range rec.Fields {
		desc, ok := catalog.Find(joinPath(prefix, name))
		if !ok {
			continue
		}
		val, err := query.CoerceStored(desc, v)
		if err != nil {
			errs.Add(desc.Path, err)
			continue
		}
		rec.Fields[name] = val
	}

	for name, subs := range rec.Nested {
		desc, ok := catalog.Find(joinPath(prefix, name))
		if !ok {
			continue
		}
		if desc.Type != schema.TypeRelation {
			errs.Add(desc.Path, schema.NewCoercionError(desc.Path, desc.Type, "",
				"a scalar value is required, not a list of sub-records"))
			continue
		}
		subPrefix := append(append([]string{}, prefix...), name)
		for _, sub := range subs {
			coerceDocument(catalog, sub, subPrefix, errs)
		}
	}
}

// requiredErrors adds an error for every required catalog field the
// document leaves unset or null. Required fields inside a relation are
// checked per sub-record row.
func requiredErrors(catalog *schema.Catalog, rec *record.Record, errs schema.FieldErrors) {
	for _, desc := range catalog.Fields() {
		if !desc.Required {
			continue
		}
		for _, row := range rowsAt(rec, desc.RelationPath) {
			if desc.Type == schema.TypeRelation {
				if len(row.Nested[desc.Name]) == 0 {
					errs.Add(desc.Path, &schema.Error{
						Field:   desc.Path,
						Code:    schema.ErrCodeCoercion,
						Message: "this field is required",
					})
				}
				continue
			}
			if record.IsNull(row.Scalar(desc.Name)) {
				errs.Add(desc.Path, &schema.Error{
					Field:   desc.Path,
					Code:    schema.ErrCodeCoercion,
					Message: "this field is required",
				})
			}
		}
	}
}

// rowsAt returns the sub-records reached by following a relation path
// from the root. An empty path yields the root itself.
func rowsAt(rec *record.Record, path []string) []*record.Record {
	rows := []*record.Record{rec}
	for _, hop := range path {
		var next []*record.Record
		for _, row := range rows {
			next = append(next, row.Nested[hop]...)
		}
		rows = next
	}
	return rows
}

// recordPaths flattens a record's field paths, nested records included.
func recordPaths(rec *record.Record, prefix []string) []string {
	var paths []string
	for name := range rec.Fields {
		paths = append(paths, joinPath(prefix, name))
	}
	for name, subs := range rec.Nested {
		subPrefix := append(append([]string{}, prefix...), name)
		seen := map[string]bool{}
		for _, sub := range subs {
			for _, p := range recordPaths(sub, subPrefix) {
				if !seen[p] {
					seen[p] = true
					paths = append(paths, p)
				}
			}
		}
	}
	// Deterministic order for error accumulation output.
	sort.Strings(paths)
	return paths
}
