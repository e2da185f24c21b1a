// Package cache stores finished review results in Redis, keyed by the exact
// change that was reviewed.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/123zhaozheng/gitlab-code-reviewer/internal/config"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/core"
	"github.com/123zhaozheng/gitlab-code-reviewer/internal/review"
)

const keyPrefix = "review:cache:"

// Cache is a Redis-backed result cache. Entries expire after the configured
// TTL; a new head commit naturally produces a new key.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ review.ResultCache = (*Cache)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return &Cache{client: client, ttl: cfg.TTL, logger: logger}, nil
}

// Key derives the cache key for one reviewed change. The hash keeps tokens
// and project paths out of Redis key listings.
func Key(project, headSHA, targetBranch string, rt core.ReviewType) string {
	sum := sha256.Sum256([]byte(project + ":" + headSHA + ":" + targetBranch + ":" + string(rt)))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached result, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, project, headSHA, targetBranch string, rt core.ReviewType) (*core.ReviewResult, error) {
	data, err := c.client.Get(ctx, Key(project, headSHA, targetBranch, rt)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var result core.ReviewResult
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		// A corrupt entry is treated as a miss so the review can be redone.
		c.logger.Warn("dropping unreadable cache entry", "error", err)
		return nil, nil
	}
	return &result, nil
}

// Set stores the result under the change's key.
func (c *Cache) Set(ctx context.Context, project, headSHA, targetBranch string, rt core.ReviewType, res *core.ReviewResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal review result: %w", err)
	}
	if err := c.client.Set(ctx, Key(project, headSHA, targetBranch, rt), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
