package redisstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// errKeyMissing is returned by redisClient.Get for absent keys.
var errKeyMissing = errors.New("key missing")

// redisClient is the subset of Redis the store needs.
type redisClient interface {
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// goRedisClient implements redisClient on go-redis.
type goRedisClient struct {
	client redis.UniversalClient
}

var _ redisClient = (*goRedisClient)(nil)

func (c *goRedisClient) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	// Published records never expire.
	return c.client.SetNX(ctx, key, value, 0).Result()
}

func (c *goRedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errKeyMissing
	}
	return val, err
}

func (c *goRedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *goRedisClient) Close() error {
	return c.client.Close()
}
