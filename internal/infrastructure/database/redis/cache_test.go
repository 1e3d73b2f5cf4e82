package redis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/enzbench/internal/infrastructure/monitoring/logging"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, Cache) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return mr, NewRedisCache(client, logging.NewNopLogger(), WithPrefix("test:"), WithDefaultTTL(time.Hour))
}

func TestCache_GetSet(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()

	_, err := cache.Get(ctx, "kegg:C00001")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "kegg:C00001", []byte("molfile"), 0))
	assert.True(t, mr.Exists("test:kegg:C00001"))
	assert.Greater(t, mr.TTL("test:kegg:C00001"), 50*time.Minute)

	got, err := cache.Get(ctx, "kegg:C00001")
	require.NoError(t, err)
	assert.Equal(t, []byte("molfile"), got)

	ok, err := cache.Exists(ctx, "kegg:C00001")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, cache.Delete(ctx, "kegg:C00001"))
	ok, err = cache.Exists(ctx, "kegg:C00001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_GetOrSet(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	var calls int32
	loader := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte("page"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := cache.GetOrSet(ctx, "ezyme:R1", time.Minute, loader)
			assert.NoError(t, err)
			assert.Equal(t, []byte("page"), v)
		}()
	}
	wg.Wait()

	v, err := cache.GetOrSet(ctx, "ezyme:R1", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, []byte("page"), v)
	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(8))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))

	before := atomic.LoadInt32(&calls)
	_, err = cache.GetOrSet(ctx, "ezyme:R1", time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&calls))
}

func TestCache_GetOrSet_LoaderError(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	_, err := cache.GetOrSet(ctx, "x", 0, func(ctx context.Context) ([]byte, error) {
		return nil, fmt.Errorf("boom")
	})
	assert.EqualError(t, err, "boom")

	_, err = cache.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCache_DeleteByPrefix(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, cache.Set(ctx, fmt.Sprintf("selenzyme:%d", i), []byte("x"), 0))
	}
	require.NoError(t, cache.Set(ctx, "kegg:C1", []byte("x"), 0))

	n, err := cache.DeleteByPrefix(ctx, "selenzyme:")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	ok, err := cache.Exists(ctx, "kegg:C1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, cache.Ping(ctx))
}
