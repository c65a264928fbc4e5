// Package cache holds computed fleet status per planning date. Entries are
// namespaced by a generation counter so that one Invalidate call drops every
// cached date after a write.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/metro-depot/fleet/induction/internal/planner"
)

// Cache stores fleet status per planning date within a generation. Callers
// read Generation before computing and pass it to Put, so a plan computed
// across an Invalidate lands in a namespace nobody reads.
type Cache interface {
	Generation(ctx context.Context) (int64, error)
	Get(ctx context.Context, gen int64, date string) (planner.FleetStatus, bool, error)
	Put(ctx context.Context, gen int64, date string, fs planner.FleetStatus) error
	Invalidate(ctx context.Context) error
}

const generationKey = "induction:status:generation"

func statusKey(gen int64, date string) string {
	return fmt.Sprintf("induction:status:%d:%s", gen, date)
}

// redisClient is the subset of *redis.Client used by RedisCache.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

type RedisCache struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisCache(addr, password string, db int, ttl time.Duration) *RedisCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisCache{client: rdb, ttl: ttl}
}

func (c *RedisCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cache generation: %w", err)
	}
	return gen, nil
}

func (c *RedisCache) Get(ctx context.Context, gen int64, date string) (planner.FleetStatus, bool, error) {
	raw, err := c.client.Get(ctx, statusKey(gen, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return planner.FleetStatus{}, false, nil
	}
	if err != nil {
		return planner.FleetStatus{}, false, fmt.Errorf("read cached status: %w", err)
	}
	var fs planner.FleetStatus
	if err := json.Unmarshal(raw, &fs); err != nil {
		return planner.FleetStatus{}, false, fmt.Errorf("decode cached status: %w", err)
	}
	return fs, true, nil
}

// Put writes under gen. A stale gen leaves an orphan entry that expires with
// its TTL.
func (c *RedisCache) Put(ctx context.Context, gen int64, date string, fs planner.FleetStatus) error {
	raw, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}
	if err := c.client.Set(ctx, statusKey(gen, date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write cached status: %w", err)
	}
	return nil
}

// Invalidate bumps the generation. Old entries age out through their TTL.
func (c *RedisCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type memoryEntry struct {
	status  planner.FleetStatus
	expires time.Time
}

// MemoryCache is the in-process fallback when Redis is not configured.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	gen     int64
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Generation(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *MemoryCache) Get(ctx context.Context, gen int64, date string) (planner.FleetStatus, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return planner.FleetStatus{}, false, nil
	}
	e, ok := c.entries[date]
	if !ok {
		return planner.FleetStatus{}, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, date)
		return planner.FleetStatus{}, false, nil
	}
	return e.status, true, nil
}

// Put drops writes computed under an older generation.
func (c *MemoryCache) Put(ctx context.Context, gen int64, date string, fs planner.FleetStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return nil
	}
	c.entries[date] = memoryEntry{status: fs, expires: c.now().Add(c.ttl)}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = map[string]memoryEntry{}
	return nil
}
