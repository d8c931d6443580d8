package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSQLiteTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteTokenStore(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	v, err := store.Load(ctx, TokenKey)
	require.NoError(t, err)
	require.Empty(t, v)

	require.NoError(t, store.Save(ctx, TokenKey, "old"))
	require.NoError(t, store.Save(ctx, TokenKey, "new"))

	v, err = store.Load(ctx, TokenKey)
	require.NoError(t, err)
	require.Equal(t, "new", v)

	require.NoError(t, store.Delete(ctx, TokenKey))
	require.NoError(t, store.Delete(ctx, TokenKey))

	v, err = store.Load(ctx, TokenKey)
	require.NoError(t, err)
	require.Empty(t, v)
}

func TestSQLiteTokenStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	store, err := OpenSQLiteTokenStore(ctx, path)
	require.NoError(t, err)
	m, err := NewManager(ctx, store, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, m.SetToken(ctx, "kept"))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteTokenStore(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	m2, err := NewManager(ctx, reopened, zerolog.Nop())
	require.NoError(t, err)
	token, ok := m2.Token()
	require.True(t, ok)
	require.Equal(t, "kept", token)
}

func TestSQLiteTokenStoreClosedErrors(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteTokenStore(ctx, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Load(ctx, TokenKey)
	require.ErrorContains(t, err, "failed to load session[auth_token]")

	err = store.Save(ctx, TokenKey, "v")
	require.ErrorContains(t, err, "failed to save session[auth_token]")
}
