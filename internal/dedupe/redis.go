// internal/dedupe/redis.go
package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// connectionTimeout bounds the initial ping.
const connectionTimeout = 5 * time.Second

// DefaultRedisPrefix namespaces the per-spider sets.
const DefaultRedisPrefix = "storescrapexter:seen"

// RedisConfig holds the Redis filter settings.
type RedisConfig struct {
	Address  string        `yaml:"address" json:"address"`
	Password string        `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`
}

// RedisFilter keeps seen keys in a Redis set per spider so repeated runs,
// possibly from different processes, skip stores already exported.
type RedisFilter struct {
	client *redis.Client
	setKey string
	ttl    time.Duration
}

// NewRedisFilter connects to Redis and returns a filter for spider.
func NewRedisFilter(cfg RedisConfig, spider string) (*RedisFilter, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisFilter{
		client: client,
		setKey: cfg.Prefix + ":" + spider,
		ttl:    cfg.TTL,
	}, nil
}

// Seen implements Filter with SADD: a key added now was not seen before.
func (f *RedisFilter) Seen(ctx context.Context, key string) (bool, error) {
	added, err := f.client.SAdd(ctx, f.setKey, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis SADD %s failed: %w", f.setKey, err)
	}
	if added > 0 && f.ttl > 0 {
		if err := f.client.Expire(ctx, f.setKey, f.ttl).Err(); err != nil {
			return false, fmt.Errorf("redis EXPIRE %s failed: %w", f.setKey, err)
		}
	}
	return added == 0, nil
}

// Forget implements Filter with SREM.
func (f *RedisFilter) Forget(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]interface{}, len(keys))
	for i, key := range keys {
		members[i] = key
	}
	if err := f.client.SRem(ctx, f.setKey, members...).Err(); err != nil {
		return fmt.Errorf("redis SREM %s failed: %w", f.setKey, err)
	}
	return nil
}

// Count returns the number of keys stored for the spider.
func (f *RedisFilter) Count(ctx context.Context) (int64, error) {
	return f.client.SCard(ctx, f.setKey).Result()
}

// Reset drops every key stored for the spider.
func (f *RedisFilter) Reset(ctx context.Context) error {
	return f.client.Del(ctx, f.setKey).Err()
}

// Close closes the Redis connection.
func (f *RedisFilter) Close() error {
	return f.client.Close()
}
