package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestBadgerBackend(t *testing.T) (*BadgerBackend, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "badger")

	backend := NewBadgerBackend()
	err := backend.Initialize(dbPath, false)
	require.NoError(t, err)

	cleanup := func() {
		backend.Close()
	}

	return backend, cleanup
}

func TestBadgerBackend_Initialize(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "badger")

		backend := NewBadgerBackend()
		err := backend.Initialize(dbPath, false)

		assert.NoError(t, err)
		assert.NotNil(t, backend.db)
		assert.True(t, backend.initialized)

		backend.Close()
	})

	t.Run("ReadOnlyReopen", func(t *testing.T) {
		tmpDir := t.TempDir()
		dbPath := filepath.Join(tmpDir, "badger")
		ctx := context.Background()

		// First create the DB
		backend1 := NewBadgerBackend()
		require.NoError(t, backend1.Initialize(dbPath, false))
		require.NoError(t, backend1.SaveResult(ctx, newEntry("Kept.java", "k1")))
		require.NoError(t, backend1.Close())

		// Open in read-only mode
		backend2 := NewBadgerBackend()
		require.NoError(t, backend2.Initialize(dbPath, true))
		defer backend2.Close()

		entry, err := backend2.LoadResult(ctx, "k1")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "Kept.java", entry.Path)
	})

	t.Run("UseBeforeInitialize", func(t *testing.T) {
		backend := NewBadgerBackend()
		_, err := backend.LoadResult(context.Background(), "x")
		assert.ErrorIs(t, err, ErrNotInitialized)
	})

	t.Run("CloseTwice", func(t *testing.T) {
		backend, _ := setupTestBadgerBackend(t)
		assert.NoError(t, backend.Close())
		assert.NoError(t, backend.Close())
	})
}

func TestBadgerBackend_Contract(t *testing.T) {
	t.Parallel()

	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	exerciseBackend(t, backend)
}

func TestBadgerBackend_SavedAtDefaultsToNow(t *testing.T) {
	t.Parallel()

	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	backend.now = func() time.Time { return fixed }

	ctx := context.Background()
	entry := newEntry("A.java", "a1")
	entry.SavedAt = time.Time{}
	require.NoError(t, backend.SaveResult(ctx, entry))

	loaded, err := backend.LoadResult(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(loaded.SavedAt))
}

func TestBadgerBackend_ListSkipsDanglingPaths(t *testing.T) {
	t.Parallel()

	backend, cleanup := setupTestBadgerBackend(t)
	defer cleanup()

	ctx := context.Background()
	// Two paths with identical content share one result.
	require.NoError(t, backend.SaveResult(ctx, newEntry("a/Same.java", "same")))
	require.NoError(t, backend.SaveResult(ctx, newEntry("b/Same.java", "same")))

	entries, err := backend.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a/Same.java", entries[0].Path)

	removed, err := backend.RemoveResult(ctx, "a/Same.java")
	require.NoError(t, err)
	require.True(t, removed)

	entries, err = backend.ListResults(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
