// Package cache keeps computed dropdown options in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "reports:options"

// OptionCache stores the distinct values of a template filter.
// Every method is best-effort: a Redis failure is logged and behaves like a miss.
type OptionCache interface {
	Get(ctx context.Context, templateID int64, filterKey string) ([]string, bool)
	Set(ctx context.Context, templateID int64, filterKey string, options []string)
	// Invalidate drops every cached filter of a template.
	Invalidate(ctx context.Context, templateID int64)
}

type redisOptionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ OptionCache = (*redisOptionCache)(nil)

// NewOptionCache returns a Redis-backed cache, or a no-op cache when rdb is nil.
func NewOptionCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) OptionCache {
	if rdb == nil {
		return noopCache{}
	}
	return &redisOptionCache{rdb: rdb, ttl: ttl, logger: logger.Named("option-cache")}
}

func optionKey(templateID int64, filterKey string) string {
	return fmt.Sprintf("%s:%d:%s", keyPrefix, templateID, filterKey)
}

func (c *redisOptionCache) Get(ctx context.Context, templateID int64, filterKey string) ([]string, bool) {
	raw, err := c.rdb.Get(ctx, optionKey(templateID, filterKey)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read cached options",
				zap.Int64("template_id", templateID),
				zap.String("filter_key", filterKey),
				zap.Error(err))
		}
		return nil, false
	}

	var options []string
	if err := json.Unmarshal(raw, &options); err != nil {
		c.logger.Warn("Discarding malformed cached options",
			zap.Int64("template_id", templateID),
			zap.String("filter_key", filterKey),
			zap.Error(err))
		return nil, false
	}
	return options, true
}

func (c *redisOptionCache) Set(ctx context.Context, templateID int64, filterKey string, options []string) {
	raw, err := json.Marshal(options)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, optionKey(templateID, filterKey), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache options",
			zap.Int64("template_id", templateID),
			zap.String("filter_key", filterKey),
			zap.Error(err))
	}
}

func (c *redisOptionCache) Invalidate(ctx context.Context, templateID int64) {
	pattern := fmt.Sprintf("%s:%d:*", keyPrefix, templateID)

	var keys []string
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("Failed to scan cached options",
			zap.Int64("template_id", templateID),
			zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("Failed to invalidate cached options",
			zap.Int64("template_id", templateID),
			zap.Error(err))
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64, string) ([]string, bool) { return nil, false }
func (noopCache) Set(context.Context, int64, string, []string)       {}
func (noopCache) Invalidate(context.Context, int64)                   {}
