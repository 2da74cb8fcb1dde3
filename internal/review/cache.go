package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/spacesedan/sentimen/internal/cache"
	"github.com/spacesedan/sentimen/internal/models"
)

type NopCache struct{}

func (NopCache) Get(context.Context, string) (models.ReviewResult, bool, error) {
	return models.ReviewResult{}, false, nil
}

func (NopCache) Set(context.Context, string, models.ReviewResult) error { return nil }

type NopRecords struct{}

func (NopRecords) Put(context.Context, []models.ReviewResult) error { return nil }

// LocalCache keeps results in process memory.
type LocalCache struct {
	lru *cache.LRUWithTTL[string, models.ReviewResult]
}

func NewLocalCache(size int, ttl time.Duration) (*LocalCache, error) {
	lru, err := cache.NewLRUWithTTL[string, models.ReviewResult](size, ttl)
	if err != nil {
		return nil, err
	}
	return &LocalCache{lru: lru}, nil
}

func (c *LocalCache) Get(_ context.Context, key string) (models.ReviewResult, bool, error) {
	r, ok := c.lru.Get(key)
	return r, ok, nil
}

func (c *LocalCache) Set(_ context.Context, key string, result models.ReviewResult) error {
	c.lru.Set(key, result)
	return nil
}

func (c *LocalCache) Stats() cache.Stats { return c.lru.Stats() }

// LayeredCache reads through a fast local cache to a shared remote one and
// fills the local cache on remote hits. Remote failures degrade to misses.
type LayeredCache struct {
	local  ResultCache
	remote ResultCache
}

func NewLayeredCache(local, remote ResultCache) *LayeredCache {
	return &LayeredCache{local: local, remote: remote}
}

func (c *LayeredCache) Get(ctx context.Context, key string) (models.ReviewResult, bool, error) {
	if r, ok, err := c.local.Get(ctx, key); err == nil && ok {
		return r, true, nil
	}

	r, ok, err := c.remote.Get(ctx, key)
	if err != nil {
		slog.Warn("[LayeredCache] Remote lookup failed", slog.String("error", err.Error()))
		return models.ReviewResult{}, false, nil
	}
	if ok {
		_ = c.local.Set(ctx, key, r)
	}
	return r, ok, nil
}

func (c *LayeredCache) Set(ctx context.Context, key string, result models.ReviewResult) error {
	if err := c.local.Set(ctx, key, result); err != nil {
		return err
	}
	return c.remote.Set(ctx, key, result)
}
