package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/UnknownOlympus/nearby/internal/models"
	"github.com/go-redis/redis/v8"
)

// RedisCache is a Cache backed by Redis string keys holding JSON coordinates.
type RedisCache struct {
	client *redis.Client
}

// RedisOptions holds the connection settings for NewRedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: rdb}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns ErrCacheMiss when the key is absent.
func (rc *RedisCache) Get(ctx context.Context, key string) (*models.Coordinates, error) {
	val, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	var coords models.Coordinates
	if err = json.Unmarshal(val, &coords); err != nil {
		return nil, fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}

	return &coords, nil
}

// Set stores coords under key. A zero ttl keeps the key forever.
func (rc *RedisCache) Set(ctx context.Context, key string, coords models.Coordinates, ttl time.Duration) error {
	data, err := json.Marshal(coords)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err = rc.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	return nil
}

// Ping checks the connection.
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
