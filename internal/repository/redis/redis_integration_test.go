//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/shestoi/providerhub/internal/repository"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	return client
}

func TestRedisRepositories_Integration(t *testing.T) {
	ctx := context.Background()
	client := startRedis(t)

	t.Run("Session Set Get Delete", func(t *testing.T) {
		repo := NewSessionRepository(client, "provider_prefs", zap.NewNop())

		_, err := repo.Get(ctx, repository.SessionKeyPendingToken)
		require.ErrorIs(t, err, repository.ErrNotFound)

		require.NoError(t, repo.Set(ctx, repository.SessionKeyPendingToken, "tok-1"))
		v, err := repo.Get(ctx, repository.SessionKeyPendingToken)
		require.NoError(t, err)
		require.Equal(t, "tok-1", v)

		// значение лежит в hash prefs:<scope>
		raw, err := client.HGet(ctx, "prefs:provider_prefs", repository.SessionKeyPendingToken).Result()
		require.NoError(t, err)
		require.Equal(t, "tok-1", raw)

		require.NoError(t, repo.Delete(ctx, repository.SessionKeyPendingToken))
		_, err = repo.Get(ctx, repository.SessionKeyPendingToken)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("Scopes are isolated", func(t *testing.T) {
		a := NewSessionRepository(client, "a", zap.NewNop())
		b := NewSessionRepository(client, "b", zap.NewNop())

		require.NoError(t, a.Set(ctx, repository.SessionKeyUserID, "user-a"))
		_, err := b.Get(ctx, repository.SessionKeyUserID)
		require.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("ProcessedOrders MarkIfAbsent and Clear", func(t *testing.T) {
		store := NewProcessedOrdersStore(client, "provider_prefs", zap.NewNop())

		added, err := store.MarkIfAbsent(ctx, "ORD1")
		require.NoError(t, err)
		require.True(t, added)

		added, err = store.MarkIfAbsent(ctx, "ORD1")
		require.NoError(t, err)
		require.False(t, added)

		require.NoError(t, store.Clear(ctx))

		added, err = store.MarkIfAbsent(ctx, "ORD1")
		require.NoError(t, err)
		require.True(t, added)
	})
}
