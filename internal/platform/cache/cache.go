package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/corvusHold/courier/internal/config"
)

// ErrMiss is returned by Get when the key does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// Cache namespaces string values in Redis as "<namespace>:<key>".
type Cache struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Cache { return &Cache{client: client} }

// NewClient builds the Redis client from app config.
func NewClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Key returns the full Redis key for a namespaced entry.
func Key(namespace, key string) string { return namespace + ":" + key }

func (c *Cache) Set(ctx context.Context, namespace, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, Key(namespace, key), value, ttl).Err()
}

func (c *Cache) Get(ctx context.Context, namespace, key string) (string, error) {
	v, err := c.client.Get(ctx, Key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (c *Cache) Exists(ctx context.Context, namespace, key string) (bool, error) {
	n, err := c.client.Exists(ctx, Key(namespace, key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes entries that may live under different namespaces in one round trip.
func (c *Cache) Delete(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, Key(e.Namespace, e.Key))
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) TTL(ctx context.Context, namespace, key string) (time.Duration, error) {
	return c.client.TTL(ctx, Key(namespace, key)).Result()
}

func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

// Entry addresses one namespaced key.
type Entry struct {
	Namespace string
	Key       string
}
