package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/schema"
)

// FieldInfo is one catalog entry in a fields listing.
type FieldInfo struct {
	Path        string   `json:"path"`
	Type        string   `json:"type"`
	Required    bool     `json:"required,omitempty"`
	Choices     []string `json:"choices,omitempty"`
	Description string   `json:"description,omitempty"`
	Lookups     []string `json:"lookups,omitempty"`
}

// NewFieldsCommand creates the fields command.
func NewFieldsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		actor   string
		scopes  []string
		include []string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List the fields visible to an actor",
		Long: `List every catalog field the actor may view, in declaration order.

The listing honours the actor's granted scopes intersected with the
requested ones, and optional include/exclude projections.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(rootOpts, cmd, actor, scopes, include, exclude)
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting identity (required)")
	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "request a named scope (repeatable)")
	cmd.Flags().StringArrayVar(&include, "include", nil, "keep only fields at or under this path (repeatable)")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "drop fields at or under this path (repeatable)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func runFields(opts *RootOptions, cmd *cobra.Command, actor string, scopes, include, exclude []string) error {
	formatter := formatterFor(opts, cmd)

	env, err := openEnv(opts, false)
	if err != nil {
		return err
	}

	resolver, err := env.resolverFor(actor, schema.ActionView, scopes)
	if err != nil {
		return err
	}

	paths, perr := resolver.Project(include, exclude)
	if perr != nil {
		return formatter.RejectOne(perr)
	}

	if formatter.Format == "json" {
		infos := make([]FieldInfo, 0, len(paths))
		for _, path := range paths {
			desc, _ := env.Catalog.Find(path)
			infos = append(infos, FieldInfo{
				Path:        desc.Path,
				Type:        string(desc.Type),
				Required:    desc.Required,
				Choices:     desc.Choices,
				Description: desc.Description,
				Lookups:     lookupNames(desc.Lookups()),
			})
		}
		return formatter.Success(infos)
	}

	for _, path := range paths {
		desc, _ := env.Catalog.Find(path)
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", desc.Path, desc.Type)
	}
	return nil
}

// NewLookupsCommand creates the lookups command.
func NewLookupsCommand(rootOpts *RootOptions) *cobra.Command {
	var fieldType string

	cmd := &cobra.Command{
		Use:   "lookups",
		Short: "List the lookups each field type accepts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookups(rootOpts, cmd, fieldType)
		},
	}

	cmd.Flags().StringVar(&fieldType, "type", "", "restrict to one field type")
	return cmd
}

func runLookups(opts *RootOptions, cmd *cobra.Command, fieldType string) error {
	formatter := formatterFor(opts, cmd)

	types := schema.FieldTypes()
	if fieldType != "" {
		t, err := schema.ParseFieldType(fieldType)
		if err != nil {
			return NewExitError(ExitCommandError, err.Error())
		}
		types = []schema.FieldType{t}
	}

	if formatter.Format == "json" {
		table := make(map[string][]string, len(types))
		for _, t := range types {
			table[string(t)] = lookupNames(schema.TypeLookups(t))
		}
		return formatter.Success(table)
	}

	for _, t := range types {
		fmt.Fprintf(formatter.Writer, "%s\t%s\n", t, strings.Join(lookupNames(schema.TypeLookups(t)), ", "))
	}
	return nil
}

// lookupNames renders a lookup list as plain strings.
func lookupNames(lookups []schema.Lookup) []string {
	names := make([]string, len(lookups))
	for i, l := range lookups {
		names[i] = string(l)
	}
	return names
}
