package cli

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadErrorCode(t *testing.T, err error) *LoadError {
	t.Helper()
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "expected LoadError, got %v", err)
	return loadErr
}

func TestLoadLayoutFormats(t *testing.T) {
	dir := t.TempDir()

	fromJSON, err := LoadLayout(writeFile(t, dir, "relay.json", relayLayout))
	require.NoError(t, err)
	require.Len(t, fromJSON, 2)

	fromYAML, err := LoadLayout(writeFile(t, dir, "relay.yaml", `
- id: A
  delay: 1
  triggerOn: power
  whenTriggered: a
  initialState: true
- id: B
  delay: 2
  triggerOn: a
  whenTriggered: b
  initialState: true
`))
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromYAML)

	fromCUE, err := LoadLayout(writeFile(t, dir, "relay.cue", relayCUE))
	require.NoError(t, err)
	assert.Equal(t, fromJSON, fromCUE)
}

func TestLoadLayoutCUEDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", `package layout

trigger: A: {
	delay:         1
	triggerOn:     "power"
	whenTriggered: "a"
	initialState:  true
}
`)
	writeFile(t, dir, "b.cue", `package layout

trigger: B: {
	delay:         2
	triggerOn:     "a"
	whenTriggered: "b"
	initialState:  true
}
`)

	snaps, err := LoadLayout(dir)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
}

func TestLoadLayoutErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		code string
	}{
		{name: "missing", path: filepath.Join(dir, "missing.json"), code: ErrCodeNotFound},
		{name: "empty dir", path: t.TempDir(), code: ErrCodeNoFiles},
		{name: "unsupported", path: writeFile(t, dir, "layout.txt", "[]"), code: ErrCodeUnsupported},
		{name: "not an array", path: writeFile(t, dir, "object.json", `{"id": "A"}`), code: ErrCodeMalformed},
		{name: "bad field", path: writeFile(t, dir, "delay.yaml", "- id: A\n  delay: soon\n"), code: ErrCodeMalformed},
		{name: "bad json", path: writeFile(t, dir, "broken.json", `[{"id": `), code: ErrCodeMalformed},
		{name: "cue without triggers", path: writeFile(t, dir, "empty.cue", "x: 1\n"), code: ErrCodeBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLayout(tt.path)
			require.Error(t, err)
			assert.Equal(t, tt.code, loadErrorCode(t, err).Code)
		})
	}
}

func TestLoadErrorMessage(t *testing.T) {
	err := &LoadError{Code: ErrCodeNotFound, Message: "layout not found: x.json"}
	assert.Equal(t, "E005: layout not found: x.json", err.Error())
}
