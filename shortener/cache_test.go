package shortener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/shortlink/testkit"
)

func TestStandaloneCache(t *testing.T) {
	cache, err := NewStandaloneCache(100, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	ctx := context.Background()

	t.Run("miss before set", func(t *testing.T) {
		_, err := cache.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "abc", "https://example.com"))

		got, err := cache.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "abc", "https://example.org"))

		got, err := cache.Get(ctx, "abc")
		require.NoError(t, err)
		assert.Equal(t, "https://example.org", got)
	})
}

func TestRedisCache_Integration(t *testing.T) {
	conn := testkit.NewRedisConnector(t)

	cache, err := NewRedisCache(conn, time.Minute, testkit.NewLogger())
	require.NoError(t, err)

	ctx := context.Background()
	code := "test" + testkit.NewID()

	t.Cleanup(func() {
		conn.GetClient().Del(ctx, cacheKeyPrefix+code)
	})

	t.Run("miss before set", func(t *testing.T) {
		_, err := cache.Get(ctx, code)
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, code, "https://example.com"))

		got, err := cache.Get(ctx, code)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", got)
	})

	t.Run("key uses short_url prefix with ttl", func(t *testing.T) {
		client := conn.GetClient()

		val, err := client.Get(ctx, cacheKeyPrefix+code).Result()
		require.NoError(t, err)
		assert.Equal(t, "https://example.com", val)

		ttl, err := client.TTL(ctx, cacheKeyPrefix+code).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}
