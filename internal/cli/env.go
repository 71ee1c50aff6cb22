package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/authz"
	"github.com/roach88/strata/internal/config"
	"github.com/roach88/strata/internal/query"
	"github.com/roach88/strata/internal/resolve"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// Env bundles the shared collaborators a command runs against.
type Env struct {
	Config  *config.Config
	Catalog *schema.Catalog
	Grants  *authz.Grants
	Store   *store.Store
}

// openEnv loads config, catalog and grants, and opens the store when the
// command needs one.
func openEnv(opts *RootOptions, needStore bool) (*Env, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "load configuration", Err: err}
	}

	catalog, err := schema.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "load catalog", Err: err}
	}

	env := &Env{Config: cfg, Catalog: catalog, Grants: &authz.Grants{}}
	if cfg.GrantsPath != "" {
		grants, err := authz.Load(cfg.GrantsPath)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: "load grants", Err: err}
		}
		env.Grants = grants
	}

	if needStore {
		st, err := store.Open(cfg.StorePath)
		if err != nil {
			return nil, &ExitError{Code: ExitCommandError, Message: "open store", Err: err}
		}
		env.Store = st
	}
	return env, nil
}

// Close releases the env's store, if open.
func (e *Env) Close() error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close()
}

// resolverFor builds a field resolver for one actor performing one
// action, intersecting the requested scopes with the actor's grants.
func (e *Env) resolverFor(actor string, action schema.Action, requested []string) (*resolve.Resolver, error) {
	if !e.Grants.Allowed(actor, e.Catalog.Project(), action) {
		return nil, NewExitError(ExitCommandError,
			fmt.Sprintf("actor %q is not granted %s on project %s", actor, action, e.Catalog.Project()))
	}
	granted := e.Grants.Scopes(actor, e.Catalog.Project(), action)
	return resolve.New(e.Catalog, action, granted, requested), nil
}

// formatterFor builds the command's output formatter.
func formatterFor(opts *RootOptions, cmd *cobra.Command) *Formatter {
	return &Formatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// readInput returns the bytes of an expression or document argument:
// "-" reads stdin, "@path" reads a file, anything else is literal JSON.
func readInput(cmd *cobra.Command, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	default:
		return []byte(arg), nil
	}
}

// parseParams converts repeated key=value flags into parser input,
// preserving order.
func parseParams(params []string) ([]query.KV, error) {
	kvs := make([]query.KV, 0, len(params))
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("malformed parameter %q: want key=value", p)
		}
		kvs = append(kvs, query.KV{Key: key, Value: value})
	}
	return kvs, nil
}

// parseExpr parses the filter input of a command: either repeated
// key=value parameters (the flat form) or one JSON expression argument
// (the nested form). Both shapes normalize to the same tree; no input at
// all is the empty filter.
func parseExpr(cmd *cobra.Command, args, params []string) (query.Expr, *schema.Error) {
	if len(params) > 0 {
		kvs, err := parseParams(params)
		if err != nil {
			return nil, &schema.Error{Code: schema.ErrCodeParse, Message: err.Error()}
		}
		return query.ParseParams(kvs)
	}
	if len(args) == 0 {
		return nil, nil
	}

	data, err := readInput(cmd, args[0])
	if err != nil {
		return nil, &schema.Error{Code: schema.ErrCodeParse, Message: err.Error()}
	}
	return query.Parse(data)
}
