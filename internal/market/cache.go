package market

import (
	"context"
	"sync"

	"github.com/quantfeed/pulse/internal/contracts"
	"github.com/quantfeed/pulse/pkg/redis"
)

// CachedRun is the most recent successful aggregation run, kept with
// its raw views so other grouping dimensions can be projected without
// refetching.
type CachedRun struct {
	Views    contracts.RawViews `json:"views"`
	Snapshot contracts.Snapshot `json:"snapshot"`
}

// Cache is the injectable memo for the last successful run. It is
// advisory only: a miss or stale value costs a recomputation, never a
// wrong result.
type Cache interface {
	Get(ctx context.Context) (CachedRun, bool)
	Set(ctx context.Context, run CachedRun)
	Invalidate(ctx context.Context)
}

// MemoryCache keeps the last run in process memory.
// Writes are last-writer-wins.
type MemoryCache struct {
	mu  sync.RWMutex
	run CachedRun
	ok  bool
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{}
}

func (c *MemoryCache) Get(_ context.Context) (CachedRun, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.run, c.ok
}

func (c *MemoryCache) Set(_ context.Context, run CachedRun) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = run
	c.ok = true
}

func (c *MemoryCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run = CachedRun{}
	c.ok = false
}

// redisCacheKey stores the last run shared across processes
const redisCacheKey = "market:last_run"

// RedisCache layers the shared Redis cache behind the in-process memo,
// so multiple API processes reuse one fetch. Degrades to memory-only
// when Redis is disabled.
type RedisCache struct {
	memory *MemoryCache
	shared *redis.Cache
}

// NewRedisCache creates a layered memory+Redis cache
func NewRedisCache(shared *redis.Cache) *RedisCache {
	return &RedisCache{
		memory: NewMemoryCache(),
		shared: shared,
	}
}

func (c *RedisCache) Get(ctx context.Context) (CachedRun, bool) {
	if run, ok := c.memory.Get(ctx); ok {
		return run, true
	}

	var run CachedRun
	found, err := c.shared.Get(ctx, redisCacheKey, &run)
	if err != nil || !found {
		return CachedRun{}, false
	}

	c.memory.Set(ctx, run)
	return run, true
}

func (c *RedisCache) Set(ctx context.Context, run CachedRun) {
	c.memory.Set(ctx, run)
	// Shared write is best-effort
	_ = c.shared.Set(ctx, redisCacheKey, run, redis.TTLDaily)
}

func (c *RedisCache) Invalidate(ctx context.Context) {
	c.memory.Invalidate(ctx)
	_ = c.shared.Delete(ctx, redisCacheKey)
}
