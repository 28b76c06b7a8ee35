package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrKeyNotFound = errors.New("idempotency key not found")

// RedisStore remembers which order a checkout request key produced.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrKeyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}

	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
	}
	return id, nil
}

// Set records orderID under key unless the key is already taken; the first
// writer wins.
func (r *RedisStore) Set(ctx context.Context, key string, orderID int64) error {
	if err := r.client.SetNX(ctx, redisKey(key), orderID, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx failed: %w", err)
	}
	return nil
}

func redisKey(key string) string {
	return fmt.Sprintf("checkout:idempotency:%s", key)
}
