// Package cache memoizes derived artifacts in Redis. The cache is an
// evictable optimization, not a source of truth: every failure path degrades
// to a miss or a dropped write, never to a failed request.
package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string
	Password string
	DB       int

	// PoolSize bounds concurrent connections; exhaustion blocks callers up
	// to PoolTimeout and then degrades to a miss.
	PoolSize    int
	PoolTimeout time.Duration

	// OpTimeout caps each get/set round-trip.
	OpTimeout time.Duration
}

type Client struct {
	rdb       *redis.Client
	opTimeout time.Duration
	logger    *log.Logger
	metrics   *Metrics
}

func New(cfg Config, logger *log.Logger, metrics *Metrics) *Client {
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	if cfg.PoolTimeout <= 0 {
		cfg.PoolTimeout = 3 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  cfg.OpTimeout,
		WriteTimeout: cfg.OpTimeout,
	})

	return &Client{
		rdb:       rdb,
		opTimeout: cfg.OpTimeout,
		logger:    logger,
		metrics:   metrics,
	}
}

// Get returns the cached artifact for key. A backend error reads as a miss;
// the metrics keep misses and backend errors apart.
func (c *Client) Get(ctx context.Context, key []byte) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, string(key)).Bytes()
	switch {
	case err == nil:
		c.metrics.observeHit()
		return data, true
	case errors.Is(err, redis.Nil):
		c.metrics.observeMiss()
		return nil, false
	default:
		c.metrics.observeError()
		c.logger.Printf("cache get degraded to miss key=%s err=%v", key, err)
		return nil, false
	}
}

// Set stores a derived artifact. Failures are logged and dropped; the caller
// already holds the computed bytes and returns them regardless. Expiry is
// left to the backend's own eviction policy.
func (c *Client) Set(ctx context.Context, key, value []byte) {
	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, string(key), value, 0).Err(); err != nil {
		c.metrics.observeSetFailure()
		c.logger.Printf("cache set dropped key=%s bytes=%d err=%v", key, len(value), err)
	}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Redis exposes the underlying client so other Redis-backed components (the
// upload rate limiter) share the same connection pool.
func (c *Client) Redis() redis.UniversalClient {
	return c.rdb
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
