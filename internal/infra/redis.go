package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisDialTimeout  = 3 * time.Second
	redisOpTimeout    = time.Second
	redisMinIdleConns = 2
)

// NewRedisClient connects the Redis instance holding run snapshots, rate
// limit windows and idempotency keys. Timeouts not set in the url default to
// values below the snapshot store deadline.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = redisMinIdleConns
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = redisDialTimeout
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = redisOpTimeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = redisOpTimeout
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s/%d: %w", opt.Addr, opt.DB, err)
	}
	return client, nil
}
