package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_ModelOverride(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, ok, err := st.GetModelOverride(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.SetModelOverride(ctx, " qwen/qwen3-coder:free "))
	name, ok, err := st.GetModelOverride(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "qwen/qwen3-coder:free", name)

	require.NoError(t, st.SetModelOverride(ctx, "mistralai/devstral-2512:free"))
	name, _, err = st.GetModelOverride(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mistralai/devstral-2512:free", name)

	require.NoError(t, st.SetModelOverride(ctx, ""))
	_, ok, err = st.GetModelOverride(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_ConcurrentWritesLastVisible(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, name := range []string{"a/one", "b/two", "c/three"} {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()
			assert.NoError(t, st.SetModelOverride(ctx, n))
		}(name)
	}
	wg.Wait()

	name, ok, err := st.GetModelOverride(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, []string{"a/one", "b/two", "c/three"}, name)
}

func TestSQLite_ErrorsArePersistenceErrors(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "unmigrated.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	_, _, err = st.GetModelOverride(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	assert.Contains(t, err.Error(), "no such table")

	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "sqlite: get model override", pe.Op)
}
