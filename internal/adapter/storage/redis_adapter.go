package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// setStockScript stores quantity and version in the product hash unless the
// stored version is newer or the product was deleted. Workers may apply
// updates out of order.
var setStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = ARGV[1]
local version = tonumber(ARGV[2])

if redis.call('HEXISTS', key, 'deleted') == 1 then
	return 0
end

local current = redis.call('HGET', key, 'version')
if current and tonumber(current) > version then
	return 0
end

redis.call('HSET', key, 'quantity', quantity, 'version', version)
return 1
`)

// deleteStockScript replaces the product hash with a deletion mark that
// expires after ARGV[1] milliseconds.
var deleteStockScript = redis.NewScript(`
local key = KEYS[1]
redis.call('DEL', key)
redis.call('HSET', key, 'deleted', 1)
redis.call('PEXPIRE', key, ARGV[1])
return 1
`)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
}

// NewRedisAdapter builds the adapter; a non-positive ttl falls back to 24h.
func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	if ttl <= 0 {
		ttl = idempotencyKeyTTL
	}
	return &RedisAdapter{client: client, idempotencyTTL: ttl}
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID int64, quantity, version int) error {
	return setStockScript.Run(ctx, r.client, []string{stockKey(productID)}, quantity, version).Err()
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID int64) (int, bool, error) {
	quantity, err := r.client.HGet(ctx, stockKey(productID), "quantity").Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return quantity, true, nil
}

// DeleteStock leaves a deletion mark for the idempotency TTL so a stale queued
// SetStock cannot bring the entry back.
func (r *RedisAdapter) DeleteStock(ctx context.Context, productID int64) error {
	return deleteStockScript.Run(ctx, r.client, []string{stockKey(productID)}, r.idempotencyTTL.Milliseconds()).Err()
}

func (r *RedisAdapter) ResetStock(ctx context.Context, productID int64) error {
	return r.client.Del(ctx, stockKey(productID)).Err()
}

func stockKey(productID int64) string {
	return stockKeyPrefix + strconv.FormatInt(productID, 10)
}
