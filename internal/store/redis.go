package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings for the Redis snapshotter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisSnapshotter stores the snapshot as a single JSON document in Redis.
type RedisSnapshotter struct {
	client *redis.Client
	key    string
}

// NewRedisSnapshotter connects to Redis and verifies the connection.
func NewRedisSnapshotter(cfg RedisConfig) (*RedisSnapshotter, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "signalbot"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return newRedisSnapshotter(client, cfg.Prefix), nil
}

func newRedisSnapshotter(client *redis.Client, prefix string) *RedisSnapshotter {
	return &RedisSnapshotter{
		client: client,
		key:    prefix + ":snapshot",
	}
}

// Save replaces the stored snapshot.
func (r *RedisSnapshotter) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}
	return nil
}

// Load fetches the stored snapshot.
func (r *RedisSnapshotter) Load(ctx context.Context) (Snapshot, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("redis get %s: %w", r.key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

// Ping verifies the Redis connection.
func (r *RedisSnapshotter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (r *RedisSnapshotter) Close() error {
	return r.client.Close()
}
