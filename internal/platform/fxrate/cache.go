package fxrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Cache stores looked-up rates
type Cache interface {
	Get(ctx context.Context, from, to string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, from, to string, rate decimal.Decimal, ttl time.Duration) error
}

// redisCommands is the subset of redis.Cmdable the cache needs
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisCache keeps rates as decimal strings under fx:rate:<FROM>:<TO>
type RedisCache struct {
	client redisCommands
}

func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func cacheKey(from, to string) string {
	return "fx:rate:" + strings.ToUpper(from) + ":" + strings.ToUpper(to)
}

func (c *RedisCache) Get(ctx context.Context, from, to string) (decimal.Decimal, bool, error) {
	value, err := c.client.Get(ctx, cacheKey(from, to)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("failed to read cached rate: %w", err)
	}

	rate, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to parse cached rate %q: %w", value, err)
	}
	return rate, true, nil
}

func (c *RedisCache) Set(ctx context.Context, from, to string, rate decimal.Decimal, ttl time.Duration) error {
	if err := c.client.Set(ctx, cacheKey(from, to), rate.String(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache rate: %w", err)
	}
	return nil
}

// CachedProvider consults the cache before the wrapped provider. Cache faults are logged and bypassed.
type CachedProvider struct {
	next   Provider
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedProvider(logger *slog.Logger, next Provider, cache Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (p *CachedProvider) Rate(ctx context.Context, from, to string) (decimal.Decimal, bool) {
	rate, ok, err := p.cache.Get(ctx, from, to)
	if err != nil {
		p.logger.Warn("FX rate cache read failed", "from", from, "to", to, "error", err)
	} else if ok {
		return rate, true
	}

	rate, ok = p.next.Rate(ctx, from, to)
	if !ok {
		return decimal.Zero, false
	}

	if err := p.cache.Set(ctx, from, to, rate, p.ttl); err != nil {
		p.logger.Warn("FX rate cache write failed", "from", from, "to", to, "error", err)
	}
	return rate, true
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = (*CachedProvider)(nil)
	_ Cache    = (*RedisCache)(nil)
)
