package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"kycgate/internal/platform/config"
)

// Client holds the connection backing the submission guard.
type Client struct {
	*redis.Client
}

// New dials Redis and verifies the connection within the dial timeout.
// Returns nil if no URL is configured, in which case the guard stays
// in-process.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	cl := redis.NewClient(opts)

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := cl.Ping(pingCtx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("redis ping failed: %w", err), cl.Close())
	}

	return &Client{Client: cl}, nil
}

// Health pings the server; it backs the /health "redis" check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
