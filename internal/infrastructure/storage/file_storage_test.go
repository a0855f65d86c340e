package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveReadList(t *testing.T) {
	base := filepath.Join(t.TempDir(), "reports")
	s := NewLocalFileStorage(base, zap.NewNop())
	ctx := context.Background()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list, "missing base dir lists as empty")

	require.NoError(t, s.Save(ctx, "2026/03/stalled-1.xlsx", []byte("one")))
	require.NoError(t, s.Save(ctx, "2026/03/stalled-1.xlsx", []byte("two")))
	require.NoError(t, s.Save(ctx, "latest.xlsx", []byte("three")))

	content, err := s.Read(ctx, "2026/03/stalled-1.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))

	assert.True(t, s.Exists(ctx, "latest.xlsx"))
	assert.False(t, s.Exists(ctx, "2026"), "directories are not files")
	assert.False(t, s.Exists(ctx, "missing.xlsx"))

	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026/03/stalled-1.xlsx", "latest.xlsx"}, list)

	entries, err := os.ReadDir(filepath.Join(base, "2026", "03"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLocalFileStorage_RejectsEscapingPaths(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	for _, p := range []string{"../outside.xlsx", "a/../../outside.xlsx", "", "."} {
		err := s.Save(ctx, p, []byte("x"))
		assert.ErrorIs(t, err, ErrPathEscapesBase, p)

		_, err = s.Read(ctx, p)
		assert.ErrorIs(t, err, ErrPathEscapesBase, p)
	}
}
