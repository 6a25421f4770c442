package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pagedigest/internal/kv"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()

	b, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "pages.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return b
}

func TestOpen_requiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}

func TestBackend_GetSetDelete(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()
	key := kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "Page"}

	_, ok, err := b.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Set(ctx, key, []byte("one")))
	require.NoError(t, b.Set(ctx, key, []byte("two")))

	value, ok, err := b.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("two"), value)

	require.NoError(t, b.Delete(ctx, key))
	_, ok, err = b.Get(ctx, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBackend_List(t *testing.T) {
	b := openTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.Set(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "b"}, []byte("b")))
	require.NoError(t, b.Set(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"}, []byte("a")))
	require.NoError(t, b.Set(ctx, kv.Key{"webhookId", "t10", "projectName", "p", "pageName", "c"}, []byte("c")))
	require.NoError(t, b.Set(ctx, kv.Key{"webhooks", "t1"}, []byte("reg")))

	entries, err := b.List(ctx, kv.Key{"webhookId", "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"}, entries[0].Key)
	require.Equal(t, []byte("b"), entries[1].Value)
}

func TestBackend_Ping(t *testing.T) {
	b := openTestBackend(t)
	require.NoError(t, b.Ping(context.Background()))
}
