package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// RecordResult is one matching record in a filter listing.
type RecordResult struct {
	ID      string          `json:"id"`
	Created time.Time       `json:"created"`
	Record  json.RawMessage `json:"record"`
}

// NewFilterCommand creates the filter command.
func NewFilterCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor   string
		scopes  []string
		params  []string
		include []string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "filter [expression]",
		Short: "List the records matching a filter expression",
		Long: `Validate a filter expression, compile it and list the matching
records in creation order. Include/exclude projections prune the
returned fields; an empty expression matches everything visible.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilter(rootOpts, cmd, args, actor, scopes, params, include, exclude)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "request a named scope (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "flat key=value filter parameter (repeatable)")
	cmd.Flags().StringArrayVar(&include, "include", nil, "keep only fields at or under this path (repeatable)")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "drop fields at or under this path (repeatable)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runFilter(opts *RootOptions, cmd *cobra.Command, args []string, actor string, scopes, params, include, exclude []string) error {
	formatter := formatterFor(opts, cmd)

	env, err := openEnv(opts, true)
	if err != nil {
		return err
	}
	defer env.Close()

	compiled, rejectErr := compileRequest(env, formatter, cmd, args, actor, scopes, params)
	if rejectErr != nil {
		return rejectErr
	}

	// The projection runs under the view action: filterable and viewable
	// field sets may differ.
	viewResolver, err := env.resolverFor(actor, schema.ActionView, scopes)
	if err != nil {
		return err
	}
	visible, perr := viewResolver.Project(include, exclude)
	if perr != nil {
		return formatter.RejectOne(perr)
	}

	matched, err := env.Store.List(cmd.Context(), env.Catalog.Project(), compiled)
	if err != nil {
		return &ExitError{Code: ExitCommandError, Message: "execute filter", Err: err}
	}
	formatter.VerboseLog("%d record(s) matched", len(matched))

	results := make([]RecordResult, 0, len(matched))
	for _, stored := range matched {
		doc, err := json.Marshal(projectRecord(stored.Record, visible, nil))
		if err != nil {
			return &ExitError{Code: ExitCommandError, Message: "render record", Err: err}
		}
		results = append(results, RecordResult{ID: stored.ID, Created: stored.Created, Record: doc})
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	for _, r := range results {
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", r.ID, r.Record)
	}
	return nil
}

// projectRecord prunes a record to the visible field paths. prefix is
// the relation path of the record being pruned; a nested record keeps a
// field when the joined path is visible.
func projectRecord(rec *record.Record, visible []string, prefix []string) *record.Record {
	keep := make(map[string]bool, len(visible))
	for _, path := range visible {
		keep[schema.Fold(path)] = true
	}

	out := record.New()
	for name, v := range rec.Fields {
		if keep[schema.Fold(joinPath(prefix, name))] {
			out.Fields[name] = v
		}
	}
	for name, subs := range rec.Nested {
		subPrefix := append(append([]string{}, prefix...), name)
		kept := make([]*record.Record, 0, len(subs))
		for _, sub := range subs {
			pruned := projectRecord(sub, visible, subPrefix)
			if len(pruned.Fields) > 0 || len(pruned.Nested) > 0 {
				kept = append(kept, pruned)
			}
		}
		if len(kept) > 0 {
			out.Nested[name] = kept
		}
	}
	return out
}

func joinPath(prefix []string, name string) string {
	if len(prefix) == 0 {
		return name
	}
	return strings.Join(prefix, schema.Separator) + schema.Separator + name
}
