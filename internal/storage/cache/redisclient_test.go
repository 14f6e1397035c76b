package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-apns-pusher/internal/storage/cache"
	"github.com/tinywideclouds/go-apns-pusher/pkg/dispatch"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *cache.RedisClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := cache.NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisClient(t *testing.T) {
	ctx := context.Background()

	t.Run("Get of a missing key is redis.Nil", func(t *testing.T) {
		_, client := newRedis(t)
		var c cache.CacheClient = client

		var dest dispatch.Invalidation
		err := c.Get(ctx, "apns:invalid:nobody", &dest)

		assert.True(t, errors.Is(err, redis.Nil))
	})

	t.Run("Set then Get decodes the JSON value with its TTL", func(t *testing.T) {
		mr, client := newRedis(t)
		var c cache.CacheClient = client
		in := dispatch.Invalidation{Token: "dead-token", Reason: "Unregistered"}

		require.NoError(t, c.Set(ctx, "k", in, time.Minute))

		var out dispatch.Invalidation
		require.NoError(t, c.Get(ctx, "k", &out))
		assert.Equal(t, in.Token, out.Token)
		assert.Equal(t, in.Reason, out.Reason)
		assert.Equal(t, time.Minute, mr.TTL("k"))
	})

	t.Run("Get of a non JSON value fails", func(t *testing.T) {
		mr, client := newRedis(t)
		require.NoError(t, mr.Set("k", "not json"))

		var out dispatch.Invalidation
		err := client.Get(ctx, "k", &out)

		require.Error(t, err)
		assert.False(t, errors.Is(err, redis.Nil))
	})

	t.Run("Del removes the key", func(t *testing.T) {
		mr, client := newRedis(t)
		require.NoError(t, client.Set(ctx, "k", 1, 0))

		require.NoError(t, client.Del(ctx, "k"))

		assert.False(t, mr.Exists("k"))
	})

	t.Run("Unreachable server fails fast", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		_, err := cache.NewRedisClient(addr, "", 0)

		assert.Error(t, err)
	})
}

func TestRedisFeedbackStore_Redis(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	store := cache.NewRedisFeedbackStore(client, time.Hour)

	// Arrange
	require.NoError(t, store.MarkInvalid(ctx, dispatch.Invalidation{Token: "dead-token", Reason: "Unregistered"}))

	// Act & Assert
	invalid, err := store.IsInvalid(ctx, "dead-token")
	require.NoError(t, err)
	assert.True(t, invalid)
	assert.True(t, mr.Exists("apns:invalid:dead-token"))

	// the mark lapses with the TTL
	mr.FastForward(2 * time.Hour)
	invalid, err = store.IsInvalid(ctx, "dead-token")
	require.NoError(t, err)
	assert.False(t, invalid)

	// and can be cleared explicitly
	require.NoError(t, store.MarkInvalid(ctx, dispatch.Invalidation{Token: "dead-token"}))
	require.NoError(t, store.Clear(ctx, "dead-token"))
	invalid, err = store.IsInvalid(ctx, "dead-token")
	require.NoError(t, err)
	assert.False(t, invalid)
}
