package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/roach88/strata/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // successful execution
	ExitFailure      = 1 // request rejected (parse, validation, cardinality)
	ExitCommandError = 2 // command error (bad paths, store unavailable)
)

// ExitError carries a specific exit code out of a command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates an ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure when the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Formatter handles JSON vs text output for commands.
type Formatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Response is the JSON envelope every command emits in json mode.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Errors []FieldProblem `json:"errors,omitempty"`
}

// FieldProblem is one field-keyed error in a JSON response.
type FieldProblem struct {
	Field   string `json:"field,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Success emits a successful payload in the configured format.
func (f *Formatter) Success(data any) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(Response{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Reject emits the accumulated field errors of a refused request and
// returns the matching ExitError.
func (f *Formatter) Reject(errs schema.FieldErrors) error {
	problems := fieldProblems(errs)

	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Response{Status: "error", Errors: problems}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("request rejected with %d error(s)", len(problems)))
	}

	for _, p := range problems {
		if p.Field != "" {
			fmt.Fprintf(f.Writer, "%s: [%s] %s\n", p.Field, p.Code, p.Message)
		} else {
			fmt.Fprintf(f.Writer, "[%s] %s\n", p.Code, p.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("request rejected with %d error(s)", len(problems)))
}

// RejectOne is Reject for a single structured error.
func (f *Formatter) RejectOne(err *schema.Error) error {
	errs := schema.FieldErrors{}
	errs.Add(err.Field, err)
	return f.Reject(errs)
}

// VerboseLog writes a diagnostic line when verbose mode is on. Output
// goes to ErrWriter so json output stays parseable.
func (f *Formatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// fieldProblems flattens a FieldErrors map into a deterministic list,
// fields in sorted order.
func fieldProblems(errs schema.FieldErrors) []FieldProblem {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []FieldProblem
	for _, k := range keys {
		for _, err := range errs[k] {
			out = append(out, FieldProblem{
				Field:   k,
				Code:    string(err.Code),
				Message: err.Message,
				Value:   err.Value,
			})
		}
	}
	return out
}
