// Package redis connects the shared Redis instance that backs revocations,
// MFA challenges and request buckets when REDIS_URL is set.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"digitalbank/internal/platform/config"
)

const (
	clientName  = "digitalbank"
	pingTimeout = 5 * time.Second
)

// Client embeds the go-redis client so stores take *redis.Client directly.
type Client struct {
	*redis.Client
}

// New connects to cfg.URL and pings it. It returns a nil client and no error
// when Redis is not configured.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	applyOverrides(opts, cfg)

	client := redis.NewClient(opts)
	timeout := pingTimeout
	if opts.DialTimeout > 0 {
		timeout = opts.DialTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: client}, nil
}

// applyOverrides copies the positive settings of cfg onto opts; zero keeps
// the go-redis default.
func applyOverrides(opts *redis.Options, cfg config.RedisConfig) {
	opts.ClientName = clientName
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

// Health pings Redis; it backs the /healthz dependency check.
func (c *Client) Health(ctx context.Context) error {
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health: %w", err)
	}
	return nil
}
