package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/patchworkisles/engine/internal/save"
)

// ErrSnapshotNotFound means no snapshot is cached for the session id.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotCache mirrors session snapshots into a shared store so a
// hosted deployment can resume a session on another machine. The file
// save slots stay authoritative; the cache is best-effort.
type SnapshotCache interface {
	Ping(ctx context.Context) error
	Close() error
	Put(ctx context.Context, id uuid.UUID, snap *save.Snapshot) error
	Get(ctx context.Context, id uuid.UUID) (*save.Snapshot, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RedisSnapshotCache implements SnapshotCache on Redis with a TTL.
type RedisSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ SnapshotCache = (*RedisSnapshotCache)(nil)

// NewRedisSnapshotCache connects a cache to the given Redis address.
func NewRedisSnapshotCache(addr string, ttl time.Duration, logger *slog.Logger) *RedisSnapshotCache {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSnapshotCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		logger: logger,
	}
}

func snapshotKey(id uuid.UUID) string {
	return "snapshot:" + id.String()
}

func (r *RedisSnapshotCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisSnapshotCache) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	return nil
}

func (r *RedisSnapshotCache) Put(ctx context.Context, id uuid.UUID, snap *save.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

func (r *RedisSnapshotCache) Get(ctx context.Context, id uuid.UUID) (*save.Snapshot, error) {
	data, err := r.client.Get(ctx, snapshotKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	var snap save.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RedisSnapshotCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.client.Del(ctx, snapshotKey(id)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
