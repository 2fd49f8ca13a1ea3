package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd(viper.New())
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	snapshot := `{"left-pad": [
  {"version": "0.9.0", "hash": "h090"},
  {"version": "1.0.0", "hash": "h100"},
  {"version": "1.1.0", "hash": "h110"}
]}`
	require.NoError(t, os.WriteFile(path, []byte(snapshot), 0644))
	return path
}

func TestWindowCommand(t *testing.T) {
	path := writeSnapshot(t)

	out, err := execute(t, "window", "--registry", "file", "--registry-path", path, "left-pad", "^1.0.0")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0\th100\n1.1.0\th110\n", out)

	out, err = execute(t, "window", "--registry", "file", "--registry-path", path, "left-pad", "^9.9.9")
	require.NoError(t, err)
	assert.Contains(t, out, "no testable versions")
}

func TestWindowCommandReadsEnvironment(t *testing.T) {
	path := writeSnapshot(t)
	t.Setenv("COMPATPROBE_REGISTRY", "file")
	t.Setenv("COMPATPROBE_REGISTRY_PATH", path)

	out, err := execute(t, "window", "left-pad", "~0.9.0")
	require.NoError(t, err)
	assert.Equal(t, "0.9.0\th090\n1.0.0\th100\n1.1.0\th110\n", out)
}

func TestSummaryCommand(t *testing.T) {
	dir := t.TempDir()
	batch := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(batch, []byte(`name: left-pad
inputs:
  - project: acme/widget
    library_package: left-pad
    range: ^1.0.0
`), 0644))

	out, err := execute(t, "summary", "-o", filepath.Join(dir, "output"), batch)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no results")
	assert.Empty(t, out)

	in := models.ExperimentInput{Project: "acme/widget", LibraryPackage: "left-pad", Range: "^1.0.0"}
	results := [][]models.TestResult{{
		models.NewTestResult(in.Resolve(models.Version{Version: "1.0.0"}), models.TestStatus{State: models.StateSuccess}),
		models.NewTestResult(in.Resolve(models.Version{Version: "1.1.0"}), models.TestStatus{State: models.StateFailure}),
	}}
	require.NoError(t, store.New(filepath.Join(dir, "output")).WriteAggregate("left-pad", results))

	out, err = execute(t, "summary", "-o", filepath.Join(dir, "output"), batch)
	require.NoError(t, err)
	assert.Contains(t, out, "Batch: left-pad")
	assert.Contains(t, out, "Runs: 2")
	assert.Contains(t, out, "Failures: 1")
	assert.Contains(t, out, "acme/widget -> left-pad: compatible up to 1.0.0, broken at 1.1.0 (2 tested)")

	out, err = execute(t, "summary", "--json", "-o", filepath.Join(dir, "output"), batch)
	require.NoError(t, err)
	var summary models.BatchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 1, summary.Failures)
	assert.Equal(t, "1.0.0", summary.Results[0].LastCompatible)
}

func TestInvalidLogSettings(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "window", "left-pad", "^1.0.0")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = execute(t, "--log-format", "xml", "window", "left-pad", "^1.0.0")
	assert.ErrorContains(t, err, "invalid log format")
}

func TestEnvFile(t *testing.T) {
	path := writeSnapshot(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("COMPATPROBE_REGISTRY_PATH="+path+"\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("COMPATPROBE_REGISTRY_PATH") })

	out, err := execute(t, "--env-file", envFile, "window", "--registry", "file", "left-pad", "^1.1.0")
	require.NoError(t, err)
	assert.Equal(t, "1.1.0\th110\n", out)
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, "b", models.BatchSummary{Inputs: 2, EmptyWindows: 2})

	assert.Contains(t, buf.String(), "Inputs: 2 (2 without testable versions)")
	assert.NotContains(t, buf.String(), "->")
}
