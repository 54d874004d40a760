package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triggersim/internal/layout"
	"github.com/roach88/triggersim/internal/store"
)

func runLayoutsCommand(format string, args ...string) (string, error) {
	return execute(NewLayoutsCommand(&RootOptions{Format: format}), args...)
}

func TestLayoutsSaveAndList(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)
	dbPath := filepath.Join(dir, "layouts.db")

	out, err := runLayoutsCommand("text", "save", "relay", path, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Saved relay revision 1 (2 trigger(s)")

	out, err = runLayoutsCommand("text", "save", "relay", path, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "revision 2")

	out, err = runLayoutsCommand("json", "list", "--db", dbPath)
	require.NoError(t, err)
	var infos []store.LayoutInfo
	decodeResponse(t, out, &infos)
	require.Len(t, infos, 1)
	assert.Equal(t, "relay", infos[0].Name)
	assert.Equal(t, 2, infos[0].Revision)
	assert.Equal(t, 2, infos[0].Triggers)
}

func TestLayoutsListEmpty(t *testing.T) {
	out, err := runLayoutsCommand("text", "list", "--db", filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No layouts stored.")
}

func TestLayoutsSaveRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.json", `[{"id": "A"}, {"id": "A"}]`)
	dbPath := filepath.Join(dir, "layouts.db")

	out, err := runLayoutsCommand("text", "save", "bad", path, "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")

	_, err = os.Stat(dbPath)
	assert.True(t, os.IsNotExist(err), "an invalid layout never opens the database")
}

func TestLayoutsExport(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)
	dbPath := filepath.Join(dir, "layouts.db")

	_, err := runLayoutsCommand("text", "save", "relay", path, "--db", dbPath)
	require.NoError(t, err)

	out, err := runLayoutsCommand("text", "export", "relay", "--db", dbPath, "--to", "yaml")
	require.NoError(t, err)
	snaps, err := layout.Decode([]byte(out), layout.FormatYAML)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "A", snaps[0].ID)
	assert.Equal(t, 2.0, snaps[1].Delay)

	outFile := filepath.Join(dir, "exported.json")
	out, err = runLayoutsCommand("text", "export", "relay", "--db", dbPath, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote relay revision 1 to")
	_, err = os.Stat(outFile)
	require.NoError(t, err)

	fromFile, err := layout.LoadFile(outFile)
	require.NoError(t, err)
	assert.Equal(t, snaps, fromFile)
}

func TestLayoutsExportInvalidEncoding(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)
	dbPath := filepath.Join(dir, "layouts.db")

	_, err := runLayoutsCommand("text", "save", "relay", path, "--db", dbPath)
	require.NoError(t, err)

	_, err = runLayoutsCommand("text", "export", "relay", "--db", dbPath, "--to", "cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLayoutsDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)
	dbPath := filepath.Join(dir, "layouts.db")

	_, err := runLayoutsCommand("text", "save", "relay", path, "--db", dbPath)
	require.NoError(t, err)

	out, err := runLayoutsCommand("text", "delete", "relay", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Deleted relay")

	out, err = runLayoutsCommand("text", "delete", "relay", "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

func TestLayoutsExportNotFound(t *testing.T) {
	out, err := runLayoutsCommand("json", "export", "ghost", "--db", filepath.Join(t.TempDir(), "layouts.db"))
	require.Error(t, err)
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestLoadNamedLayout(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.json", relayLayout)

	st, err := store.Open(filepath.Join(dir, "layouts.db"))
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	src, err := loadNamedLayout(ctx, st, path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Origin)
	require.Len(t, src.Snapshots, 2)

	_, err = st.SaveLayout(ctx, "relay", src.Snapshots)
	require.NoError(t, err)

	named, err := loadNamedLayout(ctx, st, "relay")
	require.NoError(t, err)
	assert.Equal(t, "relay@1", named.Origin)
	assert.Equal(t, src.Snapshots, named.Snapshots)

	_, err = loadNamedLayout(ctx, st, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = loadNamedLayout(ctx, nil, filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
