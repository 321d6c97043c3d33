// Package cache is a namespaced key/value store on redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	redis  *redis.Client
	prefix string
}

// Open parses a redis:// URL and verifies the server answers.
func Open(ctx context.Context, url, prefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, prefix), nil
}

func New(client *redis.Client, prefix string) *Cache {
	return &Cache{redis: client, prefix: prefix}
}

func (c *Cache) key(namespace, key string) string {
	if c.prefix == "" {
		return namespace + ":" + key
	}
	return c.prefix + ":" + namespace + ":" + key
}

// Set stores value; ttl 0 means no expiry.
func (c *Cache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	return c.redis.Set(ctx, c.key(namespace, key), value, ttl).Err()
}

// Get returns ok=false when the key does not exist.
func (c *Cache) Get(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := c.redis.Get(ctx, c.key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *Cache) Remove(ctx context.Context, namespace, key string) error {
	return c.redis.Del(ctx, c.key(namespace, key)).Err()
}

// GetDel reads and deletes key in one command. Of several concurrent callers
// for the same key at most one sees ok=true.
func (c *Cache) GetDel(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := c.redis.GetDel(ctx, c.key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *Cache) Close() error {
	return c.redis.Close()
}
