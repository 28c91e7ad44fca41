// Package cache owns the Redis client shared by the result caches and
// the rate limiter. Redis is an accelerator here, never a source of
// truth: the engine stays correct with it gone, so timeouts are short
// and a dead Redis fails builds slow, not wrong.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openmiles/awardengine/config"
)

// NewRedisClient creates the client and verifies connectivity once.
//
// Read/write timeouts stay tight: a cache lookup slower than the
// availability provider defeats its purpose, and the rate limiter
// treats errors as permits anyway.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// HealthCheck pings the client with a short deadline.
func HealthCheck(ctx context.Context, client *redis.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx).Err()
}
