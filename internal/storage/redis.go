package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores each record as a plain string value with no expiry.
type Redis struct {
	client *redis.Client
}

func NewRedis(ctx context.Context, uri string) (*Redis, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("redis storage: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis storage: ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Put(ctx context.Context, key string, body []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, body, 0).Err(); err != nil {
		return fmt.Errorf("redis storage: put %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
