package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Heartbeat cadence and the staleness cutoff derived from it. A client that
// missed two heartbeats is considered gone even if its socket lingers.
const (
	HeartbeatInterval = 30 * time.Second
	staleAfter        = 2 * HeartbeatInterval
)

// Manager tracks which users are live on which board. Board membership is
// persisted in Postgres; this is only the transient online flag.
type Manager struct {
	client *redis.Client
}

// NewManager connects to redis.
func NewManager(addr, password string, db int) *Manager {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Manager{client: rdb}
}

func (m *Manager) boardKey(boardID int64) string {
	return fmt.Sprintf("presence:board:%d", boardID)
}

// SetOnline marks a user live on a board. Scored by timestamp so stale
// entries can be trimmed without per-member TTLs.
func (m *Manager) SetOnline(ctx context.Context, boardID, userID int64) error {
	key := m.boardKey(boardID)
	if err := m.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: strconv.FormatInt(userID, 10),
	}).Err(); err != nil {
		return err
	}
	return m.client.Expire(ctx, key, staleAfter*2).Err()
}

// Heartbeat refreshes the user's liveness timestamp.
func (m *Manager) Heartbeat(ctx context.Context, boardID, userID int64) error {
	return m.SetOnline(ctx, boardID, userID)
}

// SetOffline removes the user from the board's online set.
func (m *Manager) SetOffline(ctx context.Context, boardID, userID int64) error {
	return m.client.ZRem(ctx, m.boardKey(boardID), strconv.FormatInt(userID, 10)).Err()
}

// OnlineUserIDs returns the ids of users whose heartbeat is fresh, trimming
// stale entries as a side effect.
func (m *Manager) OnlineUserIDs(ctx context.Context, boardID int64) ([]int64, error) {
	key := m.boardKey(boardID)
	cutoff := time.Now().Add(-staleAfter).Unix()

	if err := m.client.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return nil, err
	}

	members, err := m.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(members))
	for _, member := range members {
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Close releases the redis connection.
func (m *Manager) Close() error {
	return m.client.Close()
}
