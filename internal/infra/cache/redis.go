package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// clearPattern limits Clear to this service's keys on a shared Redis.
const clearPattern = "ted:*"

// RedisStore is a distributed cache backend. Every backend failure is
// logged and degraded to a cache miss or no-op so an unhealthy Redis can
// never fail an upstream request.
type RedisStore struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, log *logrus.Entry) *RedisStore {
	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.WithField("key", key).Warnf("redis get failed: %v", err)
		}
		return nil, nil
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		s.log.WithField("key", key).Warnf("redis set failed: %v", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		s.log.WithField("key", key).Warnf("redis delete failed: %v", err)
		return false, nil
	}
	return n > 0, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, clearPattern, 100).Result()
		if err != nil {
			s.log.Warnf("redis clear failed: %v", err)
			return nil
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.log.Warnf("redis clear failed: %v", err)
				return nil
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		s.log.WithField("key", key).Warnf("redis exists failed: %v", err)
		return false, nil
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
