package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/summary"
)

// NewSummariseCommand creates the summarise command.
func NewSummariseCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor  string
		scopes []string
		params []string
		field  string
	)

	cmd := &cobra.Command{
		Use:   "summarise [expression]",
		Short: "Count records grouped by a field's distinct values",
		Long: `Group the records matching a filter expression by one scalar field
and count each group.

The distinct-value count is checked against the configured ceiling
first; a field with too many distinct values is refused outright rather
than truncated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSummarise(rootOpts, cmd, args, actor, scopes, params, field)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "request a named scope (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "flat key=value filter parameter (repeatable)")
	cmd.Flags().StringVar(&field, "field", "", "field to group by (required)")
	cmd.MarkFlagRequired("actor")
	cmd.MarkFlagRequired("field")

	return cmd
}

func runSummarise(opts *RootOptions, cmd *cobra.Command, args []string, actor string, scopes, params []string, field string) error {
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

	viewResolver, err := env.resolverFor(actor, schema.ActionView, scopes)
	if err != nil {
		return err
	}

	guard := summary.NewGuard(viewResolver, env.Store, env.Config.SummaryCeiling)
	groups, err := guard.Summarise(cmd.Context(), env.Catalog.Project(), compiled, field)
	if err != nil {
		var serr *schema.Error
		if errors.As(err, &serr) {
			return formatter.RejectOne(serr)
		}
		return &ExitError{Code: ExitCommandError, Message: "summarise", Err: err}
	}

	if formatter.Format == "json" {
		return formatter.Success(groups)
	}
	for _, g := range groups {
		fmt.Fprintf(formatter.Writer, "%s\t%d\n", g.Value, g.Count)
	}
	return nil
}
