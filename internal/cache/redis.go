package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"whiteboard-backend/internal/protocol"
)

const snapshotTTL = 5 * time.Minute

// RedisClient caches full board element snapshots, so a reconnecting client
// loading its board does not hit Postgres on every join.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects to redis.
func NewRedisClient(addr, password string, db int) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisClient{client: rdb}
}

// Ping checks connectivity, for health reporting.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisClient) snapshotKey(boardID int64) string {
	return fmt.Sprintf("board:%d:elements", boardID)
}

// GetBoardSnapshot returns the cached element list, or nil on a miss.
func (r *RedisClient) GetBoardSnapshot(ctx context.Context, boardID int64) ([]protocol.ElementEntry, error) {
	data, err := r.client.Get(ctx, r.snapshotKey(boardID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var entries []protocol.ElementEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt cache entry is dropped, not served.
		log.Printf("[Cache] Corrupt snapshot for board %d, invalidating: %v", boardID, err)
		r.InvalidateBoard(ctx, boardID)
		return nil, nil
	}
	return entries, nil
}

// SetBoardSnapshot stores the element list.
func (r *RedisClient) SetBoardSnapshot(ctx context.Context, boardID int64, entries []protocol.ElementEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.snapshotKey(boardID), data, snapshotTTL).Err()
}

// InvalidateBoard drops the cached snapshot after any element mutation.
func (r *RedisClient) InvalidateBoard(ctx context.Context, boardID int64) {
	if err := r.client.Del(ctx, r.snapshotKey(boardID)).Err(); err != nil {
		log.Printf("[Cache] Failed to invalidate board %d: %v", boardID, err)
	}
}

// Close releases the redis connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
