package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triggersim/internal/compiler"
	"github.com/roach88/triggersim/internal/ir"
)

func TestValidateValidLayout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Layout valid (2 trigger(s))")
	// B's output "b" is not heard by anyone.
	assert.Contains(t, out, "warning "+compiler.ErrOutputUnheard)
}

func TestValidateValidLayoutJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, path)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 2, result.Triggers)
}

func TestValidateDuplicateIDs(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dup.json", `[{"id": "A"}, {"id": "A"}]`)

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, compiler.ErrTriggerIDDuplicate)
}

func TestValidateDuplicateIDsJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dup.yaml", "- id: A\n- id: A\n- id: \"\"\n")

	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	out, err := execute(cmd, path)
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, compiler.ErrTriggerIDDuplicate, resp.Error.Code)
	assert.Len(t, result.Errors, 2)
}

func TestValidateReportsZeroDelayCycle(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loop.json", loopLayout)

	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, path)
	require.NoError(t, err, "cycles are warnings, not errors")
	assert.Contains(t, out, "warning: Zero-delay cycle: tick re-triggers itself")
}

func TestValidateNonExistentPath(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	out, err := execute(cmd, "does-not-exist.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestValidateVerboseOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	cmd := NewValidateCommand(&RootOptions{Format: "text", Verbose: true})
	out, err := execute(cmd, path)
	require.NoError(t, err)
	assert.Contains(t, out, "Loaded 2 trigger(s)")
}

func TestValidateLayout(t *testing.T) {
	result := ValidateLayout([]ir.TriggerSnapshot{
		{ID: "A", Delay: 1, TriggerOn: "a", WhenTriggered: ir.StringPtr("b")},
		{ID: "B", Delay: 1, TriggerOn: "b", WhenTriggered: ir.StringPtr("a")},
	})
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Cycles, 1)
	assert.Equal(t, "info", result.Cycles[0].Level)
}
