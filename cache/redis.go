// Package cache provides a Redis-backed learning.ProfileCache so several
// pacerd replicas sharing one database also share one pace profile.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/GoCodeAlone/pacer/learning"
)

const defaultKey = "pacer:pace_profile"

var _ learning.ProfileCache = (*RedisProfileCache)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// RedisProfileCache stores the serialized profile under a single key.
type RedisProfileCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisProfileCache connects to Redis and verifies the connection.
func NewRedisProfileCache(ctx context.Context, opts Options) (*RedisProfileCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	key := opts.Key
	if key == "" {
		key = defaultKey
	}
	return &RedisProfileCache{client: client, key: key, ttl: opts.TTL}, nil
}

func (c *RedisProfileCache) Get(ctx context.Context) (learning.Profile, bool, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return learning.Profile{}, false, nil
	}
	if err != nil {
		return learning.Profile{}, false, fmt.Errorf("get profile: %w", err)
	}
	var p learning.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return learning.Profile{}, false, fmt.Errorf("decode profile: %w", err)
	}
	return p.Clone(), true, nil
}

// Set stores p. A zero TTL keeps it until the next invalidation.
func (c *RedisProfileCache) Set(ctx context.Context, p learning.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}

func (c *RedisProfileCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisProfileCache) Close() error {
	return c.client.Close()
}
