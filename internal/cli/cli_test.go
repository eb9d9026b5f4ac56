package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cubist/internal/harness"
)

const scenarios = "../harness/testdata/scenarios"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func decode(t *testing.T, out string, data any) Response {
	t.Helper()
	resp := Response{Data: data}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "cubist", cmd.Use)

	for _, name := range []string{"explain", "run", "test", "history"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "text", cmd.PersistentFlags().Lookup("format").DefValue)
}

func TestRoot_InvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "explain", filepath.Join(scenarios, "sum-years.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_BadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shepherd:\n  workers: 0\n"), 0o600))
	_, _, err := execute(t, "--config", path, "explain", filepath.Join(scenarios, "sum-years.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExplain(t *testing.T) {
	out, _, err := execute(t, "explain", filepath.Join(scenarios, "sum-years.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "Sum(type=NUMERIC, resultStyle=VALUE)\n")
	assert.Contains(t, out, "    SetConstruction(")

	out, _, err = execute(t, "--format", "json", "explain", filepath.Join(scenarios, "filter-limit.yaml"))
	require.NoError(t, err)
	var data ExplainOutput
	resp := decode(t, out, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Contains(t, data.Plan, "Filter(")
	assert.Equal(t, []string{"Limit NUMERIC"}, data.Parameters)
}

func TestExplain_CompileError(t *testing.T) {
	out, _, err := execute(t, "explain", filepath.Join(scenarios, "unknown-function.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E204]")
}

func TestRun_Text(t *testing.T) {
	out, _, err := execute(t, "run", filepath.Join(scenarios, "sum-years.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "59\n", out)
}

func TestRun_Bindings(t *testing.T) {
	path := filepath.Join(scenarios, "filter-limit.yaml")

	out, _, err := execute(t, "run", path, "--bind", "Limit=5")
	require.NoError(t, err)
	assert.Equal(t, "{([Product].[Fruit].[Apple]), ([Product].[Fruit].[Pear])}\n", out)

	out, _, err = execute(t, "--format", "json", "run", path, "--bind", "Limit=50")
	require.NoError(t, err)
	var data RunOutput
	resp := decode(t, out, &data)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "DONE", data.State)
	assert.Equal(t, "{}", data.Result)
	assert.NotEmpty(t, data.TraceID)
	assert.Equal(t, data.TraceID, resp.TraceID)

	out, _, err = execute(t, "run", filepath.Join(scenarios, "count-picked.yaml"),
		"--bind", "Picked=[Product].[Veg],[Product].[Fruit],[Product].[Fruit].[Apple]")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestRun_BadBinding(t *testing.T) {
	_, _, err := execute(t, "run", filepath.Join(scenarios, "sum-years.yaml"), "--bind", "novalue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "run", filepath.Join(scenarios, "sum-years.yaml"), "--bind", "Nope=1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_WritesHistory(t *testing.T) {
	db := filepath.Join(t.TempDir(), "executions.db")

	_, stderr, err := execute(t, "run", filepath.Join(scenarios, "sum-years.yaml"), "--db", db, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, stderr, `cubist_executions_total{purpose="statement",state="DONE"} 1`)
	assert.Contains(t, stderr, "execution finished")

	out, _, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)
	var entries []HistoryEntry
	decode(t, out, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "DONE", entries[0].State)
	assert.Equal(t, "statement", entries[0].Purpose)
	assert.Equal(t, "sum-years", entries[0].Message)

	out, _, err = execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "STATE")
	assert.Contains(t, out, "DONE")
}

func TestHistory_Empty(t *testing.T) {
	out, _, err := execute(t, "history", "--db", filepath.Join(t.TempDir(), "executions.db"))
	require.NoError(t, err)
	assert.Equal(t, "No executions recorded.\n", out)
}

func TestHistory_RequiresDatabase(t *testing.T) {
	t.Setenv("CUBIST_MONITOR_DATABASE", "")
	_, _, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand(t *testing.T) {
	out, _, err := execute(t, "test", scenarios, "--golden", "../harness/testdata/golden")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ sum-years")
	assert.Contains(t, out, "0 failed")

	out, _, err = execute(t, "--format", "json", "test", scenarios, "--filter", "sum-*", "--golden", "../harness/testdata/golden")
	require.NoError(t, err)
	var result TestResult
	decode(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	cube, err := filepath.Abs("../harness/testdata/cubes/sales.yaml")
	require.NoError(t, err)
	scenario := "name: pear\ncube: " + cube + "\nexpression:\n  call: Count\n  args:\n    - {call: \"{}\", args: [\"[Product].[Fruit].[Pear]\"]}\nexpect: {result: \"1\"}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pear.yaml"), []byte(scenario), 0o600))

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err, "no golden file means expect clause only")

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "pear.golden"))
	require.NoError(t, err)
	assert.Equal(t, "scenario: pear\nstate: DONE\nresult: 1\n", string(golden))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "pear.golden"), []byte("stale\n"), 0o600))
	out, _, err = execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "golden file mismatch")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "absent"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestParseBinding(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"15", 15},
		{"2.5", 2.5},
		{"true", true},
		{"hello", "hello"},
		{"[Time].[2024]", "[Time].[2024]"},
		{"[A].[x], [A].[y]", []any{"[A].[x]", "[A].[y]"}},
	}
	for _, tt := range tests {
		got, err := parseBinding(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestApplyBindings(t *testing.T) {
	s := &harness.Scenario{}
	require.NoError(t, applyBindings(s, []string{"Limit=15", "Year=[Time].[2023]"}))
	assert.Equal(t, map[string]any{"Limit": 15, "Year": "[Time].[2023]"}, s.Bindings)

	assert.Error(t, applyBindings(s, []string{"=3"}))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "wrapped", errors.New("inner"))))
}
