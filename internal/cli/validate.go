package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/predicate"
	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/schema"
)

// ValidationResult holds a validated filter's compiled shape.
type ValidationResult struct {
	Valid         bool     `json:"valid"`
	Predicate     string   `json:"predicate,omitempty"`
	RelationPaths []string `json:"relation_paths,omitempty"`
	Distinct      bool     `json:"distinct,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor  string
		scopes []string
		params []string
	)

	cmd := &cobra.Command{
		Use:   "validate [expression]",
		Short: "Validate a filter expression without executing it",
		Long: `Validate a filter expression against the catalog and the actor's
granted scopes, reporting every field error in one pass.

The expression is nested JSON ("-" reads stdin, "@path" reads a file).
Repeated --param key=value flags give the flat form instead; both shapes
validate to the same result.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args, actor, scopes, params)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "request a named scope (repeatable)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "flat key=value filter parameter (repeatable)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command, args []string, actor string, scopes, params []string) error {
	formatter := formatterFor(opts, cmd)

	env, err := openEnv(opts, false)
	if err != nil {
		return err
	}

	compiled, rejectErr := compileRequest(env, formatter, cmd, args, actor, scopes, params)
	if rejectErr != nil {
		return rejectErr
	}

	result := ValidationResult{
		Valid:         true,
		Predicate:     predicate.Render(compiled.Predicate),
		RelationPaths: compiled.RelationPaths,
		Distinct:      compiled.Distinct,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "valid: %s\n", result.Predicate)
	if result.Distinct {
		fmt.Fprintf(formatter.Writer, "distinct over relations: %v\n", result.RelationPaths)
	}
	return nil
}

// compileRequest runs the shared parse → validate → compile pipeline of
// the validate, filter and summarise commands. A returned error has
// already been written to the formatter.
func compileRequest(env *Env, formatter *Formatter, cmd *cobra.Command, args []string, actor string, scopes, params []string) (*predicate.Compiled, error) {
	resolver, err := env.resolverFor(actor, schema.ActionFilter, scopes)
	if err != nil {
		return nil, err
	}

	expr, perr := parseExpr(cmd, args, params)
	if perr != nil {
		return nil, formatter.RejectOne(perr)
	}

	tree, errs := query.NewValidator(resolver).Validate(expr)
	if !errs.Empty() {
		return nil, formatter.Reject(errs)
	}
	return predicate.Compile(tree), nil
}
