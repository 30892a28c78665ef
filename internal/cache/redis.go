// Package cache provides the Redis client and rate limiting on top of it.
// Redis holds nothing but rate limit buckets, so every key is short-lived and
// losing the server only relaxes limits.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultNamespace prefixes every key written by the application.
const DefaultNamespace = "notely:"

// Cache wraps a Redis client with a key namespace.
type Cache struct {
	client    *redis.Client
	namespace string
}

// Option configures a Cache.
type Option func(*Cache)

// WithNamespace replaces DefaultNamespace so several deployments can share
// one Redis. An empty namespace keeps the default.
func WithNamespace(ns string) Option {
	return func(c *Cache) {
		if ns != "" {
			c.namespace = ns
		}
	}
}

// New connects to Redis at redisURL and verifies the connection.
func New(ctx context.Context, redisURL string, opts ...Option) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Rate limit checks run on the request path.
	opt.PoolSize = 10
	opt.MinIdleConns = 2
	opt.PoolTimeout = 2 * time.Second
	opt.ReadTimeout = time.Second
	opt.WriteTimeout = time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return newCache(client, opts...), nil
}

func newCache(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{client: client, namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Namespace returns the prefix applied to every key.
func (c *Cache) Namespace() string {
	return c.namespace
}

// key joins parts under the namespace.
func (c *Cache) key(parts ...string) string {
	return c.namespace + strings.Join(parts, ":")
}

// Ping checks Redis connectivity for the readiness probe.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Client returns the underlying Redis client. Tests use it to flush state.
func (c *Cache) Client() *redis.Client {
	return c.client
}
