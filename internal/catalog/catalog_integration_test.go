//go:build integration
// +build integration

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ahrav/go-proctor/internal/domain"
)

func setupRedis(t *testing.T) *redis.Client {
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

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCatalog_CachesInRedis(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	src := &fakeSource{
		sites:  []domain.Site{{ID: 1, Name: "North"}},
		cycles: []domain.SectionCycle{{ID: 5, CycleID: 2, SectionID: domain.ID(3), Name: "2A"}},
	}
	c := New(src, client, time.Minute)

	for i := 0; i < 3; i++ {
		sites, err := c.Sites(ctx)
		require.NoError(t, err)
		assert.Equal(t, src.sites, sites)

		sc, err := c.SectionCycle(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, int64(3), *sc.SectionID)
	}
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, int64(4), c.Stats().Hits)

	ttl, err := client.TTL(ctx, KeyPrefix+"sites").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Sites(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestCatalog_DiscardsCorruptEntries(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, KeyPrefix+"sites", "not json", time.Minute).Err())

	src := &fakeSource{sites: []domain.Site{{ID: 1, Name: "North"}}}
	sites, err := New(src, client, time.Minute).Sites(ctx)
	require.NoError(t, err)
	assert.Len(t, sites, 1)
	assert.Equal(t, 1, src.calls)
}
