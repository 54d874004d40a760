package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const pulseScenario = `name: pulse
triggers:
  - id: A
    delay: 1
    triggerOn: go
    whenTriggered: out
    initialState: true
steps:
  - inject: go
assertions:
  - type: clock
    time: 1
`

func runTestCommand(format string, args ...string) (string, error) {
	return execute(NewTestCommand(&RootOptions{Format: format}), args...)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := runTestCommand("text", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ relay_chain")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	out, err := runTestCommand("json", harnessScenarios, "--filter", "relay*")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "relay_chain", result.Scenarios[0].Name)
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "late.yaml", `name: late
triggers:
  - id: A
    delay: 1
    triggerOn: go
    initialState: true
steps:
  - inject: go
assertions:
  - type: clock
    time: 9
`)

	out, err := runTestCommand("text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ late")
	assert.Contains(t, out, "1 failed")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "pulse.yaml", pulseScenario)

	out, err := runTestCommand("text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "golden updated")

	golden := filepath.Join(dir, "golden", "pulse.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pulse"`)

	_, err = runTestCommand("text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err = runTestCommand("text", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestTestCommandNotFound(t *testing.T) {
	_, err := runTestCommand("text", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := runTestCommand("text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := runTestCommand("text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFilterScenarios(t *testing.T) {
	files := []string{"a/relay_chain.yaml", "a/and_gate.yaml", "b/relay_loop.yml"}

	got, err := filterScenarios(files, "relay*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/relay_chain.yaml", "b/relay_loop.yml"}, got)

	got, err = filterScenarios(files, "")
	require.NoError(t, err)
	assert.Equal(t, files, got)
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scen", "golden", "relay.golden"), goldenFilePath(filepath.Join("scen", "relay.yaml")))
}
