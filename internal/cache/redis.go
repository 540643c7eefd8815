package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/fulfillment-service/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// jsonStore keeps JSON documents in redis with a jittered TTL so that keys
// written together do not expire together.
type jsonStore struct {
	client  *redis.Client
	baseTTL time.Duration
	jitter  time.Duration
}

func (s jsonStore) get(ctx context.Context, key string, dst any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get failed: %w", err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal %s failed: %w", key, err)
	}
	return nil
}

func (s jsonStore) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s failed: %w", key, err)
	}

	ttl := s.baseTTL
	if s.jitter > 0 {
		ttl += time.Duration(rand.Int63n(int64(s.jitter)))
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (s jsonStore) del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

type RedisCartCache struct {
	store jsonStore
}

func NewRedisCartCache(client *redis.Client) *RedisCartCache {
	return &RedisCartCache{store: jsonStore{client: client, baseTTL: 15 * time.Minute, jitter: 5 * time.Minute}}
}

func (c *RedisCartCache) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	var cart domain.Cart
	if err := c.store.get(ctx, cartKey(userID), &cart); err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *RedisCartCache) Set(ctx context.Context, cart *domain.Cart) error {
	return c.store.set(ctx, cartKey(cart.UserID), cart)
}

func (c *RedisCartCache) Delete(ctx context.Context, userID int64) error {
	return c.store.del(ctx, cartKey(userID))
}

// RedisOrderCache caches whole order aggregates.
type RedisOrderCache struct {
	store jsonStore
}

func NewRedisOrderCache(client *redis.Client) *RedisOrderCache {
	return &RedisOrderCache{store: jsonStore{client: client, baseTTL: 5 * time.Minute, jitter: time.Minute}}
}

func (c *RedisOrderCache) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := c.store.get(ctx, orderKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *RedisOrderCache) Set(ctx context.Context, order *domain.Order) error {
	return c.store.set(ctx, orderKey(order.ID), order)
}

func (c *RedisOrderCache) Delete(ctx context.Context, id uuid.UUID) error {
	return c.store.del(ctx, orderKey(id))
}

func cartKey(userID int64) string {
	return fmt.Sprintf("cart:%d", userID)
}

func orderKey(id uuid.UUID) string {
	return fmt.Sprintf("order:%s", id)
}
