package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triggersim/internal/engine"
	"github.com/roach88/triggersim/internal/ir"
	"github.com/roach88/triggersim/internal/mqtt"
	"github.com/roach88/triggersim/internal/store"
)

func newTestRunCommand(format string, runIDs ...string) (*RunOptions, func(args ...string) (string, error)) {
	opts := &RunOptions{RootOptions: &RootOptions{Format: format}}
	if len(runIDs) > 0 {
		opts.RunIDs = engine.NewFixedGenerator(runIDs...)
	}
	return opts, func(args ...string) (string, error) {
		return execute(newRunCommand(opts), args...)
	}
}

func TestRunInjectText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("text")
	out, err := run(path, "--inject", "power")
	require.NoError(t, err)

	assert.Contains(t, out, "» Pulse 'power' injected at T=0")
	assert.Contains(t, out, "A triggered by 'power'")
	assert.Contains(t, out, "B scheduled 'b' at T=3")
	assert.Contains(t, out, "No trigger handled pulse 'b'")
	assert.Contains(t, out, "» Simulation complete at T=3")
	assert.Contains(t, out, "\nT=3\n")
}

func TestRunJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("json", "run-1")
	out, err := run(path, "--inject", "power@0")
	require.NoError(t, err)

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Runs, 1)
	assert.Equal(t, "run-1", result.Runs[0].ID)
	assert.Equal(t, ir.RunCompleted, result.Runs[0].Outcome)
	assert.Equal(t, 3.0, result.FinalTime)
	assert.Equal(t, map[string]bool{"A": true, "B": true}, result.States)
	require.NotEmpty(t, result.Trace)
	assert.Equal(t, ir.TraceComplete, result.Trace[len(result.Trace)-1].Kind)
}

func TestRunInjectAtTime(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("json")
	out, err := run(path, "--inject", "power@2.5")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 5.5, result.FinalTime)
}

func TestRunSequentialStimuli(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("json", "run-1", "run-2", "run-3")
	out, err := run(path, "--inject", "power", "--fire", "B", "--inject", "power")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Runs, 3)

	// Injections run first, then manual fires, each from the current clock.
	assert.Equal(t, 3.0, result.Runs[0].FinalTime)
	assert.Equal(t, 5.0, result.Runs[1].FinalTime)
	assert.Equal(t, 8.0, result.Runs[2].FinalTime)
}

func TestRunStepsExceeded(t *testing.T) {
	path := writeFile(t, t.TempDir(), "loop.json", loopLayout)

	_, run := newTestRunCommand("text")
	out, err := run(path, "--inject", "t", "--max-steps", "5")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "» Simulation aborted")
	assert.Contains(t, out, "Error [STEPS_EXCEEDED]")
}

func TestRunFireInactiveTrigger(t *testing.T) {
	path := writeFile(t, t.TempDir(), "gate.json", `[{"id": "Gate", "triggerOn": "b", "whenTriggered": "out"}]`)

	_, run := newTestRunCommand("json")
	out, err := run(path, "--fire", "Gate")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result RunResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(engine.ErrCodeTriggerInactive), resp.Error.Code)
	assert.Empty(t, result.Runs)
	assert.Equal(t, ir.TraceRejected, result.Trace[len(result.Trace)-1].Kind)
}

func TestRunFireSilentTrigger(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lamp.json", `[{"id": "Lamp", "initialState": true}]`)

	_, run := newTestRunCommand("json")
	out, err := run(path, "--fire", "Lamp")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Empty(t, result.Runs, "a silent fire starts no run")
}

func TestRunUnknownTrigger(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("text")
	out, err := run(path, "--fire", "Nope")
	require.Error(t, err)
	assert.Contains(t, out, "Error [UNKNOWN_TRIGGER]")
}

func TestRunRequiresStimulus(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("text")
	_, err := run(path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "nothing to simulate")
}

func TestRunNonExistentLayout(t *testing.T) {
	_, run := newTestRunCommand("text")
	out, err := run(filepath.Join(t.TempDir(), "missing.json"), "--inject", "power")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestRunInvalidInjection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)

	_, run := newTestRunCommand("text")
	_, err := run(path, "--inject", "power@-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestRunSkipsBadEntries(t *testing.T) {
	path := writeFile(t, t.TempDir(), "dup.json", `[
		{"id": "A", "triggerOn": "power", "initialState": true},
		{"id": "A", "triggerOn": "power"}
	]`)

	_, run := newTestRunCommand("json")
	out, err := run(path, "--inject", "power")
	require.NoError(t, err)

	var result RunResult
	decodeResponse(t, out, &result)
	assert.Equal(t, map[string]bool{"A": true}, result.States)
}

func TestRunPersistsToDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)
	dbPath := filepath.Join(dir, "runs.db")

	_, run := newTestRunCommand("text", "run-1")
	_, err := run(path, "--inject", "power", "--db", dbPath)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	runs, err := st.ReadRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, ir.RunCompleted, runs[0].Outcome)

	entries, err := st.ReadTrace(ctx, "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, ir.TraceInject, entries[0].Kind)
	assert.Equal(t, ir.TraceComplete, entries[len(entries)-1].Kind)

	layout, err := st.GetLayout(ctx, runs[0].LayoutHash)
	require.NoError(t, err)
	assert.Len(t, layout, 2)
}

func TestRunPublishesMQTT(t *testing.T) {
	path := writeFile(t, t.TempDir(), "relay.json", relayLayout)
	pub := mqtt.NewFakePublisher()

	opts, run := newTestRunCommand("text")
	opts.Publisher = pub
	_, err := run(path, "--inject", "power")
	require.NoError(t, err)

	require.True(t, pub.Closed(), "session close drains and closes the publisher")
	topics := make(map[string]int)
	for _, m := range pub.Messages() {
		topics[m.Topic]++
	}
	assert.Positive(t, topics["triggersim/log"])
	assert.Positive(t, topics["triggersim/state/A"])
	assert.Positive(t, topics["triggersim/flash"])
}

func TestParseInjection(t *testing.T) {
	tests := []struct {
		raw     string
		want    Injection
		wantErr bool
	}{
		{raw: "power", want: Injection{Channel: "power"}},
		{raw: "power@0", want: Injection{Channel: "power", At: 0, HasTime: true}},
		{raw: " tick @ 2.5", want: Injection{Channel: "tick", At: 2.5, HasTime: true}},
		{raw: "a@b@1", want: Injection{Channel: "a@b", At: 1, HasTime: true}},
		{raw: "", wantErr: true},
		{raw: "@1", wantErr: true},
		{raw: "power@soon", wantErr: true},
		{raw: "power@-2", wantErr: true},
		{raw: "power@Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseInjection(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
