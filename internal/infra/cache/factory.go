package cache

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const probeTimeout = 5 * time.Second

// New selects the cache backend. With a Redis address configured it probes
// connectivity and returns a RedisStore; on any failure, or with no
// address at all, it falls back to the in-memory store. It never returns
// an error: cache unavailability must not prevent startup.
func New(redisAddr string, log *logrus.Entry) Store {
	if redisAddr == "" {
		log.Info("using in-memory cache")
		return NewMemoryStore()
	}

	client, err := newRedisClient(redisAddr)
	if err != nil {
		log.Warnf("invalid redis address %q, falling back to in-memory cache: %v", redisAddr, err)
		return NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Warnf("redis unavailable, falling back to in-memory cache: %v", err)
		return NewMemoryStore()
	}

	log.Info("using redis cache")
	return NewRedisStore(client, log)
}

func newRedisClient(addr string) (*redis.Client, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr}), nil
}
