package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", key)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes key into v. It reports false when the key does not exist.
func (c *Cache) GetJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, v); err != nil {
		return false, errors.Wrapf(err, "unmarshal %s", key)
	}
	return true, nil
}

// SwapString sets key and returns its previous value, empty when unset.
func (c *Cache) SwapString(ctx context.Context, key, value string, ttl time.Duration) (string, error) {
	prev, err := c.client.SetArgs(ctx, key, value, redis.SetArgs{Get: true, TTL: ttl}).Result()
	if err == redis.Nil {
		return "", nil
	}
	return prev, err
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
