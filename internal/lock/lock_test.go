package lock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_Exclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := Acquire(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), first.Path())

	_, err = Acquire(dir)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, first.Release())
	require.NoError(t, first.Release(), "second release is a no-op")

	again, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestRelease_Nil(t *testing.T) {
	var l *DirLock
	assert.NoError(t, l.Release())
}
