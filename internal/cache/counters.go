package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by count reads when no cached value exists; callers
// fall back to counting rows in the database.
var ErrMiss = redis.Nil

// Counters keeps the cheap badge numbers the UI polls for: unseen
// notifications per supplier and unpaid orders per restaurant. Redis is a
// cache only, the database stays the source of truth.
type Counters struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewCounters(client *redis.Client, ttl time.Duration) *Counters {
	return &Counters{Client: client, TTL: ttl}
}

func (c *Counters) unseenKey(supplierID uuid.UUID) string {
	return "badge:unseen:" + supplierID.String()
}

func (c *Counters) unpaidKey(restaurantID uuid.UUID) string {
	return "badge:unpaid:" + restaurantID.String()
}

func (c *Counters) IncrUnseen(ctx context.Context, supplierID uuid.UUID) error {
	key := c.unseenKey(supplierID)
	if err := c.Client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, c.TTL).Err()
}

func (c *Counters) ResetUnseen(ctx context.Context, supplierID uuid.UUID) error {
	return c.Client.Del(ctx, c.unseenKey(supplierID)).Err()
}

func (c *Counters) UnseenCount(ctx context.Context, supplierID uuid.UUID) (int64, error) {
	return c.Client.Get(ctx, c.unseenKey(supplierID)).Int64()
}

// SetUnseen primes the counter after a database fallback.
func (c *Counters) SetUnseen(ctx context.Context, supplierID uuid.UUID, n int64) error {
	return c.Client.Set(ctx, c.unseenKey(supplierID), n, c.TTL).Err()
}

func (c *Counters) IncrUnpaid(ctx context.Context, restaurantID uuid.UUID) error {
	key := c.unpaidKey(restaurantID)
	if err := c.Client.Incr(ctx, key).Err(); err != nil {
		return err
	}
	return c.Client.Expire(ctx, key, c.TTL).Err()
}

func (c *Counters) DecrUnpaid(ctx context.Context, restaurantID uuid.UUID) error {
	n, err := c.Client.Decr(ctx, c.unpaidKey(restaurantID)).Result()
	if err != nil {
		return err
	}
	if n < 0 {
		return c.Client.Del(ctx, c.unpaidKey(restaurantID)).Err()
	}
	return nil
}

func (c *Counters) UnpaidCount(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	return c.Client.Get(ctx, c.unpaidKey(restaurantID)).Int64()
}

// SetUnpaid primes the counter after a database fallback.
func (c *Counters) SetUnpaid(ctx context.Context, restaurantID uuid.UUID, n int64) error {
	return c.Client.Set(ctx, c.unpaidKey(restaurantID), n, c.TTL).Err()
}
