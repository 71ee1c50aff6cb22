package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalogCUE = `
project: "mycology"

fields: [
	{name: "sample_id", type: "identifier", actions: ["view", "filter", "add"]},
	{name: "country", type: "choice", choices: ["eng", "scot", "wales", "ni"], actions: ["view", "filter", "add"]},
	{name: "region", type: "text", actions: ["view", "filter", "add"]},
	{name: "start", type: "integer", actions: ["view", "filter", "add"]},
	{name: "run_name", type: "text", actions: ["view", "filter", "add"]},
	{name: "admin_note", type: "text", scopes: ["admin"]},
	{name: "tests", type: "relation", actions: ["view", "filter", "add"], fields: [
		{name: "result", type: "choice", choices: ["positive", "negative"], actions: ["view", "filter", "add"]},
	]},
]
`

const testGrantsYAML = `
actors:
  alice:
    projects:
      mycology:
        view: [base, admin]
        filter: [base, admin]
        add: [base]
        delete: [base]
  bob:
    projects:
      mycology:
        view: [base]
        filter: [base]
`

// writeFixture lays out a config, catalog, grants and store path in a
// temp dir and returns the config file path.
func writeFixture(t *testing.T) string {
	return writeFixtureCatalog(t, testCatalogCUE)
}

func writeFixtureCatalog(t *testing.T, catalogCUE string) string {
	t.Helper()
	dir := t.TempDir()

	catalogPath := filepath.Join(dir, "catalog.cue")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalogCUE), 0o644))

	grantsPath := filepath.Join(dir, "grants.yaml")
	require.NoError(t, os.WriteFile(grantsPath, []byte(testGrantsYAML), 0o644))

	configPath := filepath.Join(dir, "config.yaml")
	config := "store_path: " + filepath.Join(dir, "strata.db") + "\n" +
		"catalog_path: " + catalogPath + "\n" +
		"grants_path: " + grantsPath + "\n" +
		"summary_ceiling: 3\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	return configPath
}

// runCommand executes the CLI with args and returns stdout and the
// command error.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeResponse(t *testing.T, out string) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	return resp
}

func TestRootCommand_RejectsBadFormat(t *testing.T) {
	_, err := runCommand(t, "--format", "xml", "lookups")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLookupsCommand(t *testing.T) {
	out, err := runCommand(t, "lookups")
	require.NoError(t, err)
	assert.Contains(t, out, "integer")
	assert.Contains(t, out, "gte")

	out, err = runCommand(t, "lookups", "--type", "relation")
	require.NoError(t, err)
	assert.Contains(t, out, "isnull")
	assert.NotContains(t, out, "gte")
}

func TestLookupsCommand_UnknownType(t *testing.T) {
	_, err := runCommand(t, "lookups", "--type", "wibble")
	assert.Error(t, err)
}

func TestFieldsCommand_ScopeVisibility(t *testing.T) {
	config := writeFixture(t)

	// Without the admin scope requested, the admin field is absent.
	out, err := runCommand(t, "--config", config, "fields", "--actor", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "country")
	assert.NotContains(t, out, "admin_note")

	out, err = runCommand(t, "--config", config, "fields", "--actor", "alice", "--scope", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "admin_note")

	// An ungranted scope request is silently ignored.
	out, err = runCommand(t, "--config", config, "fields", "--actor", "bob", "--scope", "admin")
	require.NoError(t, err)
	assert.NotContains(t, out, "admin_note")
}

func TestFieldsCommand_UnknownIncludeRefused(t *testing.T) {
	config := writeFixture(t)

	_, err := runCommand(t, "--config", config,
		"fields", "--actor", "alice", "--include", "wibble")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestFieldsCommand_UnknownActorRefused(t *testing.T) {
	config := writeFixture(t)

	_, err := runCommand(t, "--config", config, "fields", "--actor", "mallory")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_Valid(t *testing.T) {
	config := writeFixture(t)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"validate", "--actor", "alice",
		`{"&": [{"country": "eng"}, {"|": [{"region": "ne"}, {"region": "nw"}]}]}`)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateCommand_AccumulatesErrors(t *testing.T) {
	config := writeFixture(t)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"validate", "--actor", "alice",
		`{"&": [{"nope": "x"}, {"start__regex": "5"}]}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Errors, 2)
}

func TestValidateCommand_FlatAndNestedAgree(t *testing.T) {
	config := writeFixture(t)

	nested, err := runCommand(t, "--config", config, "--format", "json",
		"validate", "--actor", "alice",
		`{"&": [{"country": "eng"}, {"start__gte": "5"}]}`)
	require.NoError(t, err)

	flat, err := runCommand(t, "--config", config, "--format", "json",
		"validate", "--actor", "alice",
		"--param", "country=eng", "--param", "start__gte=5")
	require.NoError(t, err)

	assert.Equal(t, nested, flat)
}

func TestInsertFilterRoundTrip(t *testing.T) {
	config := writeFixture(t)

	out, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice",
		`{"country": "eng", "region": "ne", "tests": [{"result": "positive"}]}`)
	require.NoError(t, err)
	id := out[:len(out)-1] // trailing newline

	_, err = runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"country": "scot", "region": "nw"}`)
	require.NoError(t, err)

	out, err = runCommand(t, "--config", config, "--format", "json",
		"filter", "--actor", "alice", `{"country": "eng"}`)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	var results []RecordResult
	data, _ := json.Marshal(resp.Data)
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
}

func TestInsertCommand_RejectsUnknownField(t *testing.T) {
	config := writeFixture(t)

	_, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"wibble": 1}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestInsertCommand_EnforcesRequiredFields(t *testing.T) {
	config := writeFixtureCatalog(t, `
project: "mycology"

fields: [
	{name: "sample_id", type: "identifier", required: true, actions: ["view", "filter", "add"]},
	{name: "region", type: "text", actions: ["view", "filter", "add"]},
]
`)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"insert", "--actor", "alice", `{"region": "ne"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "sample_id", resp.Errors[0].Field)

	_, err = runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"sample_id": "S-1", "region": "ne"}`)
	assert.NoError(t, err)
}

func TestInsertCommand_CoercesValuesToCatalogTypes(t *testing.T) {
	config := writeFixture(t)

	// A choice stored in the wrong casing takes its canonical form, so
	// the equivalent equality filter finds the record.
	_, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"country": "ENG", "start": "5"}`)
	require.NoError(t, err)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"filter", "--actor", "alice", `{"country": "eng"}`)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data, _ := json.Marshal(resp.Data)
	var results []RecordResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Contains(t, string(results[0].Record), `"eng"`)

	// The numeric string stored as an integer compares numerically.
	out, err = runCommand(t, "--config", config, "--format", "json",
		"filter", "--actor", "alice", `{"start__gte": 5}`)
	require.NoError(t, err)

	resp = decodeResponse(t, out)
	data, _ = json.Marshal(resp.Data)
	results = nil
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 1)
}

func TestInsertCommand_RejectsUncoercibleValues(t *testing.T) {
	config := writeFixture(t)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"insert", "--actor", "alice", `{"start": "abc", "country": "france"}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.Len(t, resp.Errors, 2)
	for _, p := range resp.Errors {
		assert.Equal(t, "TYPE_COERCION", p.Code)
	}
}

func TestInsertCommand_CanonicalisesFieldCase(t *testing.T) {
	config := writeFixture(t)

	// Keys resolve case-insensitively and store in catalog casing, so a
	// later filter on the canonical path still matches.
	_, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"Country": "eng"}`)
	require.NoError(t, err)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"filter", "--actor", "alice", `{"country": "eng"}`)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data, _ := json.Marshal(resp.Data)
	var results []RecordResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Contains(t, string(results[0].Record), `"country"`)
}

func TestFilterCommand_NestedAtom(t *testing.T) {
	config := writeFixture(t)

	_, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"region": "ne", "tests": [{"result": "positive"}]}`)
	require.NoError(t, err)
	_, err = runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"region": "nw", "tests": [{"result": "negative"}]}`)
	require.NoError(t, err)

	out, err := runCommand(t, "--config", config, "--format", "json",
		"filter", "--actor", "alice", `{"tests__result": "positive"}`)
	require.NoError(t, err)

	resp := decodeResponse(t, out)
	data, _ := json.Marshal(resp.Data)
	var results []RecordResult
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	assert.Contains(t, string(results[0].Record), `"ne"`)
}

func TestSummariseCommand(t *testing.T) {
	config := writeFixture(t)

	for _, doc := range []string{
		`{"country": "eng"}`, `{"country": "eng"}`, `{"country": "scot"}`,
	} {
		_, err := runCommand(t, "--config", config, "insert", "--actor", "alice", doc)
		require.NoError(t, err)
	}

	out, err := runCommand(t, "--config", config,
		"summarise", "--actor", "alice", "--field", "country")
	require.NoError(t, err)
	assert.Contains(t, out, "eng\t2")
	assert.Contains(t, out, "scot\t1")
}

func TestSummariseCommand_CardinalityFailsClosed(t *testing.T) {
	config := writeFixture(t) // ceiling is 3

	for _, region := range []string{"a", "b", "c", "d"} {
		_, err := runCommand(t, "--config", config,
			"insert", "--actor", "alice", `{"region": "`+region+`"}`)
		require.NoError(t, err)
	}

	out, err := runCommand(t, "--config", config, "--format", "json",
		"summarise", "--actor", "alice", "--field", "region")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "CARDINALITY_EXCEEDED", resp.Errors[0].Code)
}

func TestGetAndDeleteCommands(t *testing.T) {
	config := writeFixture(t)

	out, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"country": "eng"}`)
	require.NoError(t, err)
	id := out[:len(out)-1]

	out, err = runCommand(t, "--config", config, "get", "--actor", "alice", id)
	require.NoError(t, err)
	assert.Contains(t, out, `"eng"`)

	_, err = runCommand(t, "--config", config, "delete", "--actor", "alice", id)
	require.NoError(t, err)

	_, err = runCommand(t, "--config", config, "get", "--actor", "alice", id)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetCommand_ProjectionHidesFields(t *testing.T) {
	config := writeFixture(t)

	out, err := runCommand(t, "--config", config,
		"insert", "--actor", "alice", `{"country": "eng", "region": "ne"}`)
	require.NoError(t, err)
	id := out[:len(out)-1]

	out, err = runCommand(t, "--config", config,
		"get", "--actor", "alice", "--include", "country", id)
	require.NoError(t, err)
	assert.Contains(t, out, "country")
	assert.NotContains(t, out, "region")
}

func TestParseParamsHelper(t *testing.T) {
	kvs, err := parseParams([]string{"country=eng", "start__gte=5"})
	require.NoError(t, err)
	require.Len(t, kvs, 2)
	assert.Equal(t, "country", kvs[0].Key)
	assert.Equal(t, "eng", kvs[0].Value)

	_, err = parseParams([]string{"noequals"})
	assert.Error(t, err)
	_, err = parseParams([]string{"=value"})
	assert.Error(t, err)
}
