package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

type fakeCacheStore struct {
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCacheStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (f *fakeCacheStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCacheStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.values, k)
	}
	return nil
}

func (f *fakeCacheStore) CartCacheKey(userID string) string {
	return "lm:cart:" + userID
}

func TestRedisCacheRoundTripAndMiss(t *testing.T) {
	store := newFakeCacheStore()
	cache := NewRedisCache(store, 10*time.Minute)
	ctx := context.Background()
	userID := uuid.New()

	if _, err := cache.Get(ctx, userID); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}

	want := &CartDTO{
		Items:     []ItemDTO{{ID: uuid.New(), ProductID: uuid.New(), Quantity: 2, LineTotal: decimal.RequireFromString("51.98")}},
		ItemCount: 2,
		Subtotal:  decimal.RequireFromString("51.98"),
	}
	if err := cache.Set(ctx, userID, want); err != nil {
		t.Fatalf("set: %v", err)
	}

	ttl := store.ttls["lm:cart:"+userID.String()]
	if ttl < 10*time.Minute || ttl >= 12*time.Minute {
		t.Fatalf("ttl %s outside jitter window", ttl)
	}

	got, err := cache.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ItemCount != 2 || !got.Subtotal.Equal(want.Subtotal) || len(got.Items) != 1 {
		t.Fatalf("unexpected cart %+v", got)
	}

	if err := cache.Delete(ctx, userID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := cache.Get(ctx, userID); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestRedisCacheSurfacesStoreErrors(t *testing.T) {
	store := newFakeCacheStore()
	store.getErr = errors.New("connection refused")
	cache := NewRedisCache(store, 0)

	_, err := cache.Get(context.Background(), uuid.New())
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected store error, got %v", err)
	}
	if cache.baseTTL != 15*time.Minute {
		t.Fatalf("expected default ttl, got %s", cache.baseTTL)
	}
}
