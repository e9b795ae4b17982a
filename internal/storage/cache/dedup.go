// Package cache provides the Redis-backed fast path for duplicate
// confirmation deliveries. It is an optimization only: the conditional
// updates in postgres stay correct without it, so every failure here is
// swallowed into a cache miss.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/courseloop/enrollment-gateway/internal/config"
)

type Dedup struct {
	client *redis.Client
}

func NewDedup(cfg config.RedisConfig) (*Dedup, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Dedup{client: client}, nil
}

func (d *Dedup) Seen(ctx context.Context, key string) (bool, error) {
	_, err := d.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (d *Dedup) MarkSeen(ctx context.Context, key string, ttl time.Duration) error {
	return d.client.Set(ctx, key, "1", ttl).Err()
}

func (d *Dedup) Close() error {
	return d.client.Close()
}
