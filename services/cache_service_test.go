package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupMemoryCache() *CacheService {
	return NewCacheService(NewMemoryStore(), discardLogger())
}

func TestCacheService_FetchesAtMostOnceWithinTTL(t *testing.T) {
	cache := setupMemoryCache()
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte("trips"), nil
	}

	first, err := cache.GetOrFetch(ctx, "search:a:b:c", time.Minute, false, fetch)
	require.NoError(t, err)
	second, err := cache.GetOrFetch(ctx, "search:a:b:c", time.Minute, false, fetch)
	require.NoError(t, err)

	assert.Equal(t, []byte("trips"), first)
	assert.Equal(t, []byte("trips"), second)
	assert.Equal(t, 1, calls)
}

func TestCacheService_ForceRefreshAlwaysFetches(t *testing.T) {
	cache := setupMemoryCache()
	ctx := context.Background()

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte("fresh"), nil
	}

	_, err := cache.GetOrFetch(ctx, "k", time.Hour, false, fetch)
	require.NoError(t, err)
	_, err = cache.GetOrFetch(ctx, "k", time.Hour, true, fetch)
	require.NoError(t, err)
	_, err = cache.GetOrFetch(ctx, "k", time.Hour, true, fetch)
	require.NoError(t, err)

	assert.Equal(t, 3, calls)
}

func TestCacheService_StaleEntryRefetched(t *testing.T) {
	cache := setupMemoryCache()
	ctx := context.Background()

	now := time.Date(2025, time.March, 25, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	calls := 0
	fetch := func(context.Context) ([]byte, error) {
		calls++
		return []byte("v"), nil
	}

	_, err := cache.GetOrFetch(ctx, "k", time.Minute, false, fetch)
	require.NoError(t, err)

	// Within TTL: served from cache.
	now = now.Add(30 * time.Second)
	_, err = cache.GetOrFetch(ctx, "k", time.Minute, false, fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	// Past TTL: entry is never returned as a hit.
	now = now.Add(45 * time.Second)
	_, err = cache.GetOrFetch(ctx, "k", time.Minute, false, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestCacheService_FetchErrorPropagatesAndIsNotStored(t *testing.T) {
	cache := setupMemoryCache()
	ctx := context.Background()
	boom := errors.New("remote down")

	_, err := cache.GetOrFetch(ctx, "k", time.Minute, false, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	// The failure was not cached: the next call fetches again.
	value, err := cache.GetOrFetch(ctx, "k", time.Minute, false, func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), value)
}

func TestRedisStore_MissThenStore(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	cache := NewCacheService(NewRedisStore(db), discardLogger())
	fixed := time.Date(2025, time.March, 25, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixed }

	entry := CacheEntry{Value: []byte("trips"), FetchedAt: fixed}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectGet("search:Dhaka:Rajshahi:28-Mar-2025").RedisNil()
	mock.ExpectSet("search:Dhaka:Rajshahi:28-Mar-2025", raw, time.Minute).SetVal("OK")

	value, err := cache.GetOrFetch(context.Background(), SearchKey("Dhaka", "Rajshahi", "28-Mar-2025"), time.Minute, false,
		func(context.Context) ([]byte, error) { return []byte("trips"), nil })

	require.NoError(t, err)
	assert.Equal(t, []byte("trips"), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_HitSkipsFetch(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	cache := NewCacheService(NewRedisStore(db), discardLogger())
	fixed := time.Date(2025, time.March, 25, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return fixed }

	entry := CacheEntry{Value: []byte("cached"), FetchedAt: fixed.Add(-10 * time.Second)}
	raw, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectGet("layout:T1:SNIGDHA").SetVal(string(raw))

	value, err := cache.GetOrFetch(context.Background(), LayoutKey("T1", "SNIGDHA"), time.Minute, false,
		func(context.Context) ([]byte, error) {
			t.Fatal("fetch must not run on a fresh hit")
			return nil, nil
		})

	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
