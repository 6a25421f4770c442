//go:build integration

package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/wolfeidau/pagedigest/internal/kv"
)

func setupRedisContainer(t *testing.T, ctx context.Context) (*Backend, func()) {
	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	backend, err := New(ctx, Config{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)

	cleanup := func() {
		_ = backend.Close()
		_ = container.Terminate(ctx)
	}

	return backend, cleanup
}

func TestIntegration_BackendLifecycle(t *testing.T) {
	ctx := context.Background()
	backend, cleanup := setupRedisContainer(t, ctx)
	defer cleanup()

	require.NoError(t, backend.Set(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "b"}, []byte("b")))
	require.NoError(t, backend.Set(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"}, []byte("a")))
	require.NoError(t, backend.Set(ctx, kv.Key{"webhookId", "t10", "projectName", "p", "pageName", "c"}, []byte("c")))

	entries, err := backend.List(ctx, kv.Key{"webhookId", "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, []byte("a"), entries[0].Value)
	require.Equal(t, []byte("b"), entries[1].Value)

	require.NoError(t, backend.Delete(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"}))

	entries, err = backend.List(ctx, kv.Key{"webhookId", "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, ok, err := backend.Get(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"})
	require.NoError(t, err)
	require.False(t, ok)
}
