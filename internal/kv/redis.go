package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore adapts a Redis client to the Store contract. The original
// deployment target; GET/SETEX/RPUSH map one-to-one.
type redisStore struct {
	client *redis.Client
}

// NewRedis returns a Store backed by the Redis instance at addr.
// No connection is established until the first operation.
func NewRedis(addr string) Store {
	return &redisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *redisStore) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.SetEx(ctx, key, value, ttl).Err()
}

func (s *redisStore) RPush(ctx context.Context, key, value string) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *redisStore) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return s.client.LRange(ctx, key, start, stop).Result()
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
