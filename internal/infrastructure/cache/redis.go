package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"Encyclopedia/internal/ports"
)

const keyPrefix = "slug:"

// RedisSlugCache keeps slug -> article id lookups in Redis.
type RedisSlugCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ ports.SlugCache = (*RedisSlugCache)(nil)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Connect dials Redis and verifies the connection with PING.
func Connect(ctx context.Context, opts Options) (*RedisSlugCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedisSlugCache(client, opts.TTL), nil
}

// NewRedisSlugCache wraps an existing client. A zero ttl keeps entries forever.
func NewRedisSlugCache(client redis.UniversalClient, ttl time.Duration) *RedisSlugCache {
	return &RedisSlugCache{client: client, ttl: ttl}
}

// Get returns the cached article id for slug.
func (c *RedisSlugCache) Get(ctx context.Context, slug string) (string, bool, error) {
	id, err := c.client.Get(ctx, keyPrefix+slug).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", slug, err)
	}
	return id, true, nil
}

// Set stores slug -> articleID.
func (c *RedisSlugCache) Set(ctx context.Context, slug, articleID string) error {
	if err := c.client.Set(ctx, keyPrefix+slug, articleID, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", slug, err)
	}
	return nil
}

// Delete drops slug from the cache.
func (c *RedisSlugCache) Delete(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, keyPrefix+slug).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", slug, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisSlugCache) Close() error {
	return c.client.Close()
}
