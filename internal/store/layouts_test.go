package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/triggersim/internal/ir"
)

func TestPutLayout_ContentAddressed(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	layout := createTestLayout()

	h1, err := s.PutLayout(ctx, layout)
	require.NoError(t, err)
	h2, err := s.PutLayout(ctx, layout)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, ir.MustLayoutHash(layout), h1)

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM layout_snapshots").Scan(&count))
	assert.Equal(t, 1, count)

	back, err := s.GetLayout(ctx, h1)
	require.NoError(t, err)
	assert.Equal(t, layout, back)
}

func TestGetLayout_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.GetLayout(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveLayout_BumpsRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	layout := createTestLayout()

	info, err := s.SaveLayout(ctx, "relay", layout)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Revision)
	assert.Equal(t, 2, info.Triggers)

	changed := append(createTestLayout(), ir.TriggerSnapshot{ID: "C"})
	info, err = s.SaveLayout(ctx, "relay", changed)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Revision)
	assert.Equal(t, 3, info.Triggers)

	back, loaded, err := s.LoadLayout(ctx, "relay")
	require.NoError(t, err)
	assert.Equal(t, changed, back)
	assert.Equal(t, info, loaded)
}

func TestSaveLayout_EmptyName(t *testing.T) {
	s := createTestStore(t)
	_, err := s.SaveLayout(context.Background(), "", createTestLayout())
	assert.Error(t, err)
}

func TestSaveLayout_EmptyLayout(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveLayout(ctx, "blank", nil)
	require.NoError(t, err)

	back, _, err := s.LoadLayout(ctx, "blank")
	require.NoError(t, err)
	assert.NotNil(t, back)
	assert.Empty(t, back)
}

func TestListLayouts_SortedByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListLayouts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	for _, name := range []string{"zeta", "Alpha", "beta"} {
		_, err := s.SaveLayout(ctx, name, createTestLayout())
		require.NoError(t, err)
	}

	infos, err := s.ListLayouts(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "Alpha", infos[0].Name, "binary collation sorts upper case first")
	assert.Equal(t, "beta", infos[1].Name)
	assert.Equal(t, "zeta", infos[2].Name)
}

func TestDeleteLayout(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.SaveLayout(ctx, "relay", createTestLayout())
	require.NoError(t, err)

	deleted, err := s.DeleteLayout(ctx, "relay")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteLayout(ctx, "relay")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, _, err = s.LoadLayout(ctx, "relay")
	assert.True(t, errors.Is(err, ErrNotFound))
}
