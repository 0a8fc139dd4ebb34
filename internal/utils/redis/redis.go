// Package redis provides a Redis client used to cache downloaded ballot files
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"

	"github.com/tensorplex-labs/socialchoice/internal/config"
)

type Redis struct {
	client rueidis.Client
	cfg    *config.CacheEnvConfig
}

type RedisInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close()
}

func NewRedis(cfg *config.CacheEnvConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)},
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		SelectDB:    cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	return &Redis{
		client: client,
		cfg:    cfg,
	}, nil
}

// Get returns "" without error when key is absent.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		return "", err
	}
	return resp.ToString()
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		return r.client.Do(ctx, r.client.B().Set().Key(key).Value(value).Ex(ttl).Build()).Error()
	}
	return r.client.Do(ctx, r.client.B().Set().Key(key).Value(value).Build()).Error()
}

func (r *Redis) Del(ctx context.Context, key string) error {
	err := r.client.Do(ctx, r.client.B().Del().Key(key).Build()).Error()
	if err != nil && !rueidis.IsRedisNil(err) {
		return err
	}
	return nil
}

func (r *Redis) Close() {
	r.client.Close()
}
