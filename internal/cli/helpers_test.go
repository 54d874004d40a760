package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// relayLayout relays an external "power" pulse through A (delay 1) and B
// (delay 2); B's output "b" is unheard, so a run ends at T=3.
const relayLayout = `[
  {"id": "A", "delay": 1, "triggerOn": "power", "whenTriggered": "a", "initialState": true},
  {"id": "B", "delay": 2, "triggerOn": "a", "whenTriggered": "b", "initialState": true}
]`

// loopLayout re-triggers itself with no delay and never finishes on its own.
const loopLayout = `[
  {"id": "tick", "triggerOn": "t", "whenTriggered": "t", "initialState": true}
]`

const relayCUE = `package layout

trigger: A: {
	delay:         1
	triggerOn:     "power"
	whenTriggered: "a"
	initialState:  true
}
trigger: B: {
	delay:         2
	triggerOn:     ["a"]
	whenTriggered: "b"
	initialState:  true
}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns its combined output.
func execute(cmd *cobra.Command, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse decodes a CLIResponse whose data is decoded into data.
func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}
