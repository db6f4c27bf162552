// Package redis implements the cache.Store interface on a Redis backend,
// for deployments where multiple client instances share cached responses.
package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gaborage/go-restclient/cache"
)

// Client implements the cache.Store interface using Redis as the backend.
type Client struct {
	client *redis.Client
	config *Config
	closed atomic.Bool
}

var _ cache.Store = (*Client)(nil)

// NewClient creates a new Redis store client.
// Validates configuration and establishes a connection.
func NewClient(cfg *Config) (*Client, error) {
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.Database,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection with PING
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, cache.NewConnectionError("ping", cfg.Address(), err)
	}

	return &Client{
		client: client,
		config: cfg,
	}, nil
}

// Get retrieves a value from the store.
// Returns cache.ErrNotFound if the key doesn't exist.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, cache.ErrClosed
	}

	result, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, cache.NewOperationError("get", key, err)
	}

	return result, nil
}

// Set stores a value with the specified TTL.
// TTL of 0 means no expiration (use with caution).
// Returns cache.ErrInvalidTTL if TTL is negative.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if ttl < 0 {
		return cache.ErrInvalidTTL
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return cache.NewOperationError("set", key, err)
	}

	return nil
}

// Delete removes a key from the store.
// Does not return an error if the key doesn't exist.
func (c *Client) Delete(ctx context.Context, key string) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return cache.NewOperationError("delete", key, err)
	}

	return nil
}

// Health checks connectivity with a PING.
func (c *Client) Health(ctx context.Context) error {
	if c.closed.Load() {
		return cache.ErrClosed
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		return cache.NewConnectionError("ping", c.config.Address(), err)
	}

	return nil
}

// Close closes the Redis connection. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.client.Close()
}
