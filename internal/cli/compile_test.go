package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/layout"
)

func TestCompileCUEToStdout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.cue", relayCUE)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.NoError(t, err)

	var snaps []ir.TriggerSnapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	require.Len(t, snaps, 2)
	assert.Equal(t, "A", snaps[0].ID)
	assert.Equal(t, "power", snaps[0].TriggerOn)
	assert.Equal(t, "B", snaps[1].ID)
	assert.Equal(t, 2.0, snaps[1].Delay)
}

func TestCompileToYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path, "--to", "yaml")
	require.NoError(t, err)

	snaps, err := layout.Decode([]byte(out), layout.FormatYAML)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "a", *snaps[0].WhenTriggered)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.cue", relayCUE)
	outputFile := filepath.Join(dir, "compiled.yaml")

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Compiled 2 trigger(s)")
	assert.Contains(t, out, "Wrote yaml layout")

	snaps, err := layout.LoadFile(outputFile)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)
}

func TestCompileJSONFormat(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, path)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, result.Triggers, 2)

	snaps, err := layout.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ir.MustLayoutHash(snaps), result.Hash)
}

func TestCompileCUEDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", "package layout\n\ntrigger: A: {triggerOn: \"power\", whenTriggered: \"a\"}\n")
	writeFile(t, dir, "b.cue", "package layout\n\ntrigger: B: {triggerOn: \"a\"}\n")

	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, dir)
	require.NoError(t, err)

	var result CompilationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Triggers, 2)
}

func TestCompileNonExistentPath(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestCompileEmptyDirectory(t *testing.T) {
	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNoFiles)
}

func TestCompileUnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.txt", relayLayout)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeUnsupported)
}

func TestCompileMalformedJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.json", `{"id": "A"}`)

	cmd := NewCompileCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, path)
	require.Error(t, err)

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMalformed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "expected an array")
}

func TestCompileInvalidCUE(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "trigger: A: {\n\tdelay: -1\n}\n")

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E00")
}

func TestCompileRejectsCUEOutput(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	_, err := execute(cmd, path, "-o", filepath.Join(dir, "out.cue"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "out.cue"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCompileInvalidTo(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	cmd := NewCompileCommand(&RootOptions{Format: "text"})
	_, err := execute(cmd, path, "--to", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --to")
}
