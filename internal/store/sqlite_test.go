package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	_, err := st.Get(ctx, KeyAccessToken)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.Set(ctx, KeyAccessToken, []byte("tok-1"), 0))

	got, err := st.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, []byte("tok-1"), got)

	// Upsert replaces in place.
	require.NoError(t, st.Set(ctx, KeyAccessToken, []byte("tok-2"), 0))
	got, err = st.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	require.Equal(t, []byte("tok-2"), got)

	require.NoError(t, st.Delete(ctx, KeyAccessToken))
	_, err = st.Get(ctx, KeyAccessToken)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreTTL(t *testing.T) {
	ctx := context.Background()
	st := newTestSQLiteStore(t)

	require.NoError(t, st.Set(ctx, KeyOAuthReturn, []byte("flag"), 50*time.Millisecond))

	got, err := st.Get(ctx, KeyOAuthReturn)
	require.NoError(t, err)
	require.Equal(t, []byte("flag"), got)

	time.Sleep(120 * time.Millisecond)
	_, err = st.Get(ctx, KeyOAuthReturn)
	require.ErrorIs(t, err, ErrNotFound)
}
