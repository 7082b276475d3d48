package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSnapshotMiss is returned by SnapshotCache.Load when nothing is cached.
var ErrSnapshotMiss = errors.New("snapshot not cached")

// SnapshotCache holds the latest GameSnapshot of each game for cheap reads.
type SnapshotCache interface {
	Save(ctx context.Context, snap *GameSnapshot) error
	Load(ctx context.Context, gameID uint) (*GameSnapshot, error)
}

// NopSnapshotCache caches nothing.
type NopSnapshotCache struct{}

func (NopSnapshotCache) Save(context.Context, *GameSnapshot) error { return nil }

func (NopSnapshotCache) Load(context.Context, uint) (*GameSnapshot, error) {
	return nil, ErrSnapshotMiss
}

// RedisSnapshotCache stores snapshots as JSON under "<namespace>:game:<id>".
// Game ids are only unique within one namespace.
type RedisSnapshotCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
}

func NewRedisSnapshotCache(client *redis.Client, ttl time.Duration, namespace string) *RedisSnapshotCache {
	return &RedisSnapshotCache{client: client, ttl: ttl, namespace: namespace}
}

func (c *RedisSnapshotCache) Save(ctx context.Context, snap *GameSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal game snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(snap.GameID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store in Redis: %w", err)
	}
	return nil
}

func (c *RedisSnapshotCache) Load(ctx context.Context, gameID uint) (*GameSnapshot, error) {
	data, err := c.client.Get(ctx, c.key(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var snap GameSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game snapshot: %w", err)
	}
	return &snap, nil
}

func (c *RedisSnapshotCache) key(gameID uint) string {
	return fmt.Sprintf("%s:game:%d", c.namespace, gameID)
}
