//go:build integration

package ratelimit

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

// setupRedisContainer starts a throwaway Redis and returns a connected client.
// The container is terminated when the test completes.
func setupRedisContainer(t testing.TB) *redis.Client {
	ctx := context.Background()

	container, err := redisContainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := NewRedisClient(endpoint, "", 1)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.Ping(ctx).Result()
	require.NoError(t, err)
	return client
}
