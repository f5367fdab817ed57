package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache is the read-through store for cart listings.
type Cache interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Set(ctx context.Context, userID uuid.UUID, cart *CartDTO) error
	Delete(ctx context.Context, userID uuid.UUID) error
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartCacheKey(userID string) string
}

// RedisCache keeps serialized carts in Redis. Entries expire after the base
// TTL plus up to a fifth of it in jitter so a burst of logins does not expire
// together.
type RedisCache struct {
	store   cacheStore
	baseTTL time.Duration
}

// NewRedisCache builds a cart cache on the shared redis client.
func NewRedisCache(store cacheStore, baseTTL time.Duration) *RedisCache {
	if baseTTL <= 0 {
		baseTTL = 15 * time.Minute
	}
	return &RedisCache{store: store, baseTTL: baseTTL}
}

func (c *RedisCache) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	raw, err := c.store.Get(ctx, c.store.CartCacheKey(userID.String()))
	if errors.Is(err, redislib.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart CartDTO
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (c *RedisCache) Set(ctx context.Context, userID uuid.UUID, cart *CartDTO) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := c.store.Set(ctx, c.store.CartCacheKey(userID.String()), string(payload), c.ttl()); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := c.store.Del(ctx, c.store.CartCacheKey(userID.String())); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *RedisCache) ttl() time.Duration {
	spread := int64(c.baseTTL / 5)
	if spread <= 0 {
		return c.baseTTL
	}
	return c.baseTTL + time.Duration(rand.Int64N(spread))
}
