package fetcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
	"github.com/jonesrussell/north-cloud/product-detector/internal/fetcher"
	"github.com/jonesrussell/north-cloud/product-detector/internal/logger"
)

type countingFetcher struct {
	calls int
	page  string
	err   error
}

func (f *countingFetcher) Fetch(context.Context, string) (string, error) {
	f.calls++
	return f.page, f.err
}

func newCache(t *testing.T, next fetcher.Fetcher, ttl time.Duration) (*fetcher.CachedFetcher, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return fetcher.NewCached(next, client, ttl, logger.NewNop()), mr
}

func TestCachedFetcher_HitAndExpiry(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{page: "<div>Widget $9.99</div>"}
	cached, mr := newCache(t, next, time.Minute)
	ctx := context.Background()

	for range 3 {
		page, err := cached.Fetch(ctx, "https://shop.example/a")
		require.NoError(t, err)
		assert.Equal(t, "<div>Widget $9.99</div>", page)
	}
	assert.Equal(t, 1, next.calls)
	assert.True(t, mr.Exists(fetcher.CacheKey("https://shop.example/a")))

	mr.FastForward(2 * time.Minute)
	_, err := cached.Fetch(ctx, "https://shop.example/a")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{err: errors.New("boom")}
	cached, mr := newCache(t, next, time.Minute)

	_, err := cached.Fetch(context.Background(), "https://shop.example/b")
	require.Error(t, err)
	assert.False(t, mr.Exists(fetcher.CacheKey("https://shop.example/b")))
}

func TestCachedFetcher_CorruptEntryFallsThrough(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{page: "fresh"}
	cached, mr := newCache(t, next, time.Minute)
	require.NoError(t, mr.Set(fetcher.CacheKey("https://shop.example/c"), "not gzip"))

	page, err := cached.Fetch(context.Background(), "https://shop.example/c")
	require.NoError(t, err)
	assert.Equal(t, "fresh", page)
	assert.Equal(t, 1, next.calls)
}

func TestCachedFetcher_RedisDownFallsThrough(t *testing.T) {
	t.Parallel()

	next := &countingFetcher{page: "live"}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	cached := fetcher.NewCached(next, client, time.Minute, logger.NewNop())

	page, err := cached.Fetch(context.Background(), "https://shop.example/d")
	require.NoError(t, err)
	assert.Equal(t, "live", page)
}

func TestCacheKey_Stable(t *testing.T) {
	t.Parallel()

	a := fetcher.CacheKey("https://shop.example/a")
	assert.Equal(t, a, fetcher.CacheKey("https://shop.example/a"))
	assert.NotEqual(t, a, fetcher.CacheKey("https://shop.example/b"))
	assert.Contains(t, a, "product-detector:page:")
}

func TestNewRedisClient(t *testing.T) {
	t.Parallel()

	_, err := fetcher.NewRedisClient(context.Background(), config.RedisConfig{})
	require.ErrorIs(t, err, fetcher.ErrEmptyRedisAddress)

	mr := miniredis.RunT(t)
	client, err := fetcher.NewRedisClient(context.Background(), config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	require.NoError(t, client.Close())
}
