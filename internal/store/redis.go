package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotKey returns the Redis key holding a room's latest snapshot.
func SnapshotKey(roomID string) string {
	return fmt.Sprintf("whiteboard:%s:snapshot", roomID)
}

// ReplayKey returns the Redis list holding a room's replay buffer.
func ReplayKey(roomID string) string {
	return fmt.Sprintf("whiteboard:%s:replay", roomID)
}

// Redis stores one snapshot per room under SnapshotKey. A zero TTL keeps
// keys forever.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient parses a redis:// URL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, roomID string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, SnapshotKey(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot from redis: %w", err)
	}
	return data, nil
}

func (r *Redis) Save(ctx context.Context, roomID string, data []byte) error {
	if err := r.rdb.Set(ctx, SnapshotKey(roomID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("write snapshot to redis: %w", err)
	}
	return nil
}

// ReplayCache mirrors a room's replay buffer into a capped Redis list so a
// restarted relay can still answer join-room. It is a best-effort cache.
type ReplayCache struct {
	rdb   *redis.Client
	limit int64
	ttl   time.Duration
}

func NewReplayCache(rdb *redis.Client, limit int, ttl time.Duration) *ReplayCache {
	return &ReplayCache{rdb: rdb, limit: int64(limit), ttl: ttl}
}

// Append pushes a raw event and trims the list to the newest limit entries.
func (c *ReplayCache) Append(ctx context.Context, roomID string, event []byte) error {
	key := ReplayKey(roomID)
	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, key, event)
	if c.limit > 0 {
		pipe.LTrim(ctx, key, -c.limit, -1)
	}
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append replay event: %w", err)
	}
	return nil
}

// Load returns the cached events oldest first.
func (c *ReplayCache) Load(ctx context.Context, roomID string) ([][]byte, error) {
	vals, err := c.rdb.LRange(ctx, ReplayKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read replay events: %w", err)
	}
	out := make([][]byte, len(vals))
	for i, v := range vals {
		out[i] = []byte(v)
	}
	return out, nil
}

func (c *ReplayCache) Clear(ctx context.Context, roomID string) error {
	return c.rdb.Del(ctx, ReplayKey(roomID)).Err()
}
