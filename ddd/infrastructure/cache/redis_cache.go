package cache

import (
	"context"
	"errors"
	"time"

	"lingo-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares translations across processes. SETNX gives first-writer-wins.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "lingo:translation:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warnf("Translation cache read failed key=%s error=%v", key, err)
		}
		return "", false
	}
	return v, true
}

func (c *RedisCache) PutIfAbsent(ctx context.Context, key, value string) bool {
	ok, err := c.client.SetNX(ctx, c.prefix+key, value, c.ttl).Result()
	if err != nil {
		logger.Warnf("Translation cache write failed key=%s error=%v", key, err)
		return false
	}
	return ok
}
