// internal/common/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"bus-finder/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the Redis client backing the search result cache.
type RedisClient struct {
	Client *redis.Client
}

// NewRedis creates a new Redis client. It returns nil when no address is
// configured; callers treat a nil client as "cache disabled".
func NewRedis(cfg config.RedisConfig) *RedisClient {
	if cfg.Address == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     cfg.PoolSize,
	})

	return &RedisClient{Client: rdb}
}

// Ping tests the Redis connection. A disabled cache is always healthy.
func (c *RedisClient) Ping(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return nil
	}
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisClient) Close() error {
	if c != nil && c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

// GetClient returns the underlying client, or nil when the cache is disabled.
func (c *RedisClient) GetClient() *redis.Client {
	if c == nil {
		return nil
	}
	return c.Client
}
