/**
 * @description
 * Redis connection manager using go-redis.
 * Used for the price cache and the pub/sub channel carrying live quotes.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 *
 * @notes
 * - Redis is optional at runtime. Callers fall back to Postgres when ConnectRedis fails.
 */

package db

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stocky-project/backend/internal/config"
	"github.com/stocky-project/backend/internal/logger"
)

// ConnectRedis initializes the Redis client
func ConnectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}

	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = 2 * time.Second
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = 2 * time.Second
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = 5 * time.Second
	}
	if opt.PoolTimeout == 0 {
		opt.PoolTimeout = 5 * time.Second
	}
	if opt.MaxRetries == 0 {
		opt.MaxRetries = 2
	}
	if opt.MinRetryBackoff == 0 {
		opt.MinRetryBackoff = 200 * time.Millisecond
	}
	if opt.MaxRetryBackoff == 0 {
		opt.MaxRetryBackoff = 2 * time.Second
	}
	if opt.PoolSize == 0 {
		opt.PoolSize = 20
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = 5
	}

	client := redis.NewClient(opt)

	// Ping to verify connection
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("✅ Connected to Redis")
	return client, nil
}
