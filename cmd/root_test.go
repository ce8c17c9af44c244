package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	remaperrors "remapflame/internal/errors"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stderr)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stderr.String(), err
}

func TestRootCommandRemapsGraph(t *testing.T) {
	dir := t.TempDir()
	mapping := filepath.Join(dir, "methods.csv")
	target := filepath.Join(dir, "flamegraph.svg")
	require.NoError(t, os.WriteFile(mapping, []byte("func_123,computeHash\n"), 0644))
	require.NoError(t, os.WriteFile(target, []byte("a:::func_123<b\na:::func_999 b\n"), 0644))

	logs, err := runCommand(t, "--log-format", "text", mapping, target)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "flamegraph-remapped.svg"))
	require.NoError(t, err)
	assert.Equal(t, "a:::computeHash<b\na:::func_999 b\n", string(out))

	assert.Contains(t, logs, "processing flame graph")
	assert.Contains(t, logs, "loaded mappings")
	assert.Contains(t, logs, "count=1")
	assert.Contains(t, logs, "done.")
}

func TestRootCommandMarkerFlag(t *testing.T) {
	dir := t.TempDir()
	mapping := filepath.Join(dir, "fields.csv")
	target := filepath.Join(dir, "graph.svg")
	require.NoError(t, os.WriteFile(mapping, []byte("field_1,health\n"), 0644))
	require.NoError(t, os.WriteFile(target, []byte(":::field_1 x\n"), 0644))

	_, err := runCommand(t, "--marker", "field", mapping, target)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(dir, "graph-remapped.svg"))
	require.NoError(t, err)
	assert.Equal(t, ":::health x\n", string(out))
}

func TestRootCommandWrongArgumentCount(t *testing.T) {
	for _, args := range [][]string{{}, {"only.csv"}, {"a.csv", "b.svg", "c"}} {
		_, err := runCommand(t, args...)
		require.Error(t, err)

		var ce *remaperrors.ConfigError
		assert.True(t, errors.As(err, &ce), "args %v", args)
	}
}

func TestRootCommandMissingMapping(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "graph.svg")
	require.NoError(t, os.WriteFile(target, []byte("x\n"), 0644))

	logs, err := runCommand(t, "--log-format", "text", filepath.Join(dir, "absent.csv"), target)
	require.Error(t, err)

	var nf *remaperrors.FileNotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Contains(t, logs, "remap failed")

	_, statErr := os.Stat(filepath.Join(dir, "graph-remapped.svg"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRootCommandInvalidLogLevel(t *testing.T) {
	_, err := runCommand(t, "--log-level", "loud", "m.csv", "g.svg")
	var ce *remaperrors.ConfigError
	assert.True(t, errors.As(err, &ce))
}

func TestRootCommandWatchAndDryRunExclusive(t *testing.T) {
	_, err := runCommand(t, "--watch", "--dry-run", "m.csv", "g.svg")
	assert.Error(t, err)
}

func TestRootCommandIgnoresStrayConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	stray := "marker: method\ndry_run: true\npprof: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".remapflame.yaml"), []byte(stray), 0644))

	mapping := filepath.Join(dir, "methods.csv")
	target := filepath.Join(dir, "graph.svg")
	require.NoError(t, os.WriteFile(mapping, []byte("func_1,one\n"), 0644))
	require.NoError(t, os.WriteFile(target, []byte(":::func_1 x\n"), 0644))

	cmd := NewRootCommand()
	cmd.SetArgs([]string{mapping, target})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	out, err := os.ReadFile(filepath.Join(dir, "graph-remapped.svg"))
	require.NoError(t, err)
	assert.Equal(t, ":::one x\n", string(out))
}

// TestExecuteHelperProcess is run as a child by TestExecuteExitCode so that
// Execute can call os.Exit without ending the test binary.
func TestExecuteHelperProcess(t *testing.T) {
	if os.Getenv("REMAPFLAME_HELPER") != "1" {
		t.Skip("only runs as a child of TestExecuteExitCode")
	}
	var args []string
	if err := json.Unmarshal([]byte(os.Getenv("REMAPFLAME_HELPER_ARGS")), &args); err != nil {
		os.Exit(2)
	}
	os.Args = append([]string{"remapflame"}, args...)
	Execute()
	os.Exit(0)
}

func runExecute(t *testing.T, dir string, args ...string) (int, string) {
	t.Helper()
	encoded, err := json.Marshal(args)
	require.NoError(t, err)

	child := exec.Command(os.Args[0], "-test.run=^TestExecuteHelperProcess$")
	child.Dir = dir
	child.Env = append(os.Environ(),
		"REMAPFLAME_HELPER=1",
		"REMAPFLAME_HELPER_ARGS="+string(encoded),
		"HOME="+dir,
	)
	var stderr bytes.Buffer
	child.Stderr = &stderr

	err = child.Run()
	if err == nil {
		return 0, stderr.String()
	}
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "unexpected error %v", err)
	return exitErr.ExitCode(), stderr.String()
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExecuteExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns the test binary")
	}

	tests := []struct {
		name string
		args []string
	}{
		{"one argument", []string{"methods.csv"}},
		{"three arguments", []string{"methods.csv", "graph.svg", "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "methods.csv"), []byte("func_1,one\n"), 0644))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.svg"), []byte(":::func_1 x\n"), 0644))
			before := listDir(t, dir)

			code, stderr := runExecute(t, dir, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "missing / wrong arguments")
			assert.ElementsMatch(t, before, listDir(t, dir))
		})
	}

	t.Run("two arguments", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "methods.csv"), []byte("func_1,one\n"), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.svg"), []byte(":::func_1 x\n"), 0644))

		code, _ := runExecute(t, dir, "methods.csv", "graph.svg")
		assert.Equal(t, 0, code)

		out, err := os.ReadFile(filepath.Join(dir, "graph-remapped.svg"))
		require.NoError(t, err)
		assert.Equal(t, ":::one x\n", string(out))
	})
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
