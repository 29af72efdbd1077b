package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"railbooker/monitoring"
)

// CacheEntry pairs a cached value with the moment it was fetched from the
// remote service. TTL decisions use FetchedAt, not store-observed time.
type CacheEntry struct {
	Value     []byte    `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CacheStore is the backend holding entries between lookups. The memory
// store lives for one process; the Redis store carries discovery results
// across re-runs.
type CacheStore interface {
	Get(ctx context.Context, key string) (CacheEntry, bool, error)
	Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error
}

// CacheService reduces redundant discovery calls. Not safe for concurrent
// booking attempts; the engine runs one attempt per process.
type CacheService struct {
	store CacheStore
	now   func() time.Time
	log   *slog.Logger
}

func NewCacheService(store CacheStore, log *slog.Logger) *CacheService {
	return &CacheService{store: store, now: time.Now, log: log}
}

// GetOrFetch returns the cached value for key unless it is missing, older
// than ttl, or force is set; in those cases fetch runs, its result is stored
// with a fresh timestamp and returned. Fetch failures propagate and are
// never stored; retry belongs to the booking state machine, not the cache.
func (c *CacheService) GetOrFetch(ctx context.Context, key string, ttl time.Duration, force bool, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	if force {
		monitoring.TrackCache("bypass")
	} else {
		entry, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.log.Warn("cache read failed, falling through to fetch", "key", key, "error", err)
		} else if ok && c.now().Sub(entry.FetchedAt) <= ttl {
			monitoring.TrackCache("hit")
			c.log.Debug("cache hit", "key", key, "age", c.now().Sub(entry.FetchedAt))
			return entry.Value, nil
		}
		monitoring.TrackCache("miss")
	}

	value, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry := CacheEntry{Value: value, FetchedAt: c.now()}
	if err := c.store.Set(ctx, key, entry, ttl); err != nil {
		// A write failure costs a future round trip, nothing more.
		c.log.Warn("cache write failed", "key", key, "error", err)
	}
	return value, nil
}

// SearchKey builds the cache key for a trip search.
func SearchKey(from, to, date string) string {
	return fmt.Sprintf("search:%s:%s:%s", from, to, date)
}

// LayoutKey builds the cache key for a seat layout snapshot.
func LayoutKey(tripID, class string) string {
	return fmt.Sprintf("layout:%s:%s", tripID, class)
}

// MemoryStore is the default process-lifetime backend.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]CacheEntry)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (CacheEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	return entry, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, entry CacheEntry, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry
	return nil
}

// RedisStore keeps entries in Redis so discovery survives process re-runs.
// Entries also expire server-side at the TTL as a bound on stale data.
type RedisStore struct {
	Redis *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{Redis: client}
}

func (r *RedisStore) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	raw, err := r.Redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, err
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("corrupt cache entry %s: %w", key, err)
	}
	return entry, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, entry CacheEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.Redis.Set(ctx, key, raw, ttl).Err()
}
