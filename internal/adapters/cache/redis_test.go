package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/athebyme/listing-publisher/pkg/errors"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCacheWithClient(client, "lp"), mr
}

func TestRedisCache_GetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, errors.ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "publish:progress:job-1", []byte("25"), time.Minute))
	got, err := c.Get(ctx, "publish:progress:job-1")
	require.NoError(t, err)
	assert.Equal(t, "25", string(got))

	// ключи хранятся с префиксом
	assert.True(t, mr.Exists("lp:publish:progress:job-1"))

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "publish:progress:job-1")
	assert.ErrorIs(t, err, errors.ErrCacheMiss)
}

func TestRedisCache_IncrementAndGetMulti(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	v, err := c.Increment(ctx, "publish:stats:EBAY:success", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = c.Increment(ctx, "publish:stats:EBAY:success", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	values, err := c.GetMulti(ctx, []string{"publish:stats:EBAY:success", "publish:stats:EBAY:failure"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{"publish:stats:EBAY:success": []byte("3")}, values)
}

func TestRedisCache_DeleteByPattern(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	for _, key := range []string{"publish:progress:a", "publish:progress:b", "publish:stats:EBAY:success"} {
		require.NoError(t, c.Set(ctx, key, []byte("1"), 0))
	}

	require.NoError(t, c.DeleteByPattern(ctx, "publish:progress:*"))

	assert.False(t, mr.Exists("lp:publish:progress:a"))
	assert.False(t, mr.Exists("lp:publish:progress:b"))
	assert.True(t, mr.Exists("lp:publish:stats:EBAY:success"))
}

func TestRedisCache_Delete(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))
	require.NoError(t, c.Delete(ctx))
	assert.False(t, mr.Exists("lp:a"))
}

func TestRedisCache_Expire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	_, err := c.Increment(ctx, "publish:attempts:job-1", 1)
	require.NoError(t, err)
	require.NoError(t, c.Expire(ctx, "publish:attempts:job-1", time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("lp:publish:attempts:job-1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, mr.Exists("lp:publish:attempts:job-1"))
}
