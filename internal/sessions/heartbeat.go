package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HeartbeatStore tracks liveness of in-progress sessions in redis. The
// client beats while its call is up; the reaper treats an IN_PROGRESS
// session with an expired key as unexpectedly terminated.
type HeartbeatStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewHeartbeatStore(rdb *redis.Client, ttl time.Duration) *HeartbeatStore {
	return &HeartbeatStore{rdb: rdb, ttl: ttl}
}

func heartbeatKey(sessionID uint) string {
	return fmt.Sprintf("session:%d:heartbeat", sessionID)
}

// Beat refreshes the session's liveness key.
func (h *HeartbeatStore) Beat(ctx context.Context, sessionID uint) error {
	return h.rdb.Set(ctx, heartbeatKey(sessionID), "1", h.ttl).Err()
}

// Alive reports whether the session's liveness key still exists.
func (h *HeartbeatStore) Alive(ctx context.Context, sessionID uint) (bool, error) {
	n, err := h.rdb.Exists(ctx, heartbeatKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear drops the liveness key once a session terminates.
func (h *HeartbeatStore) Clear(ctx context.Context, sessionID uint) error {
	return h.rdb.Del(ctx, heartbeatKey(sessionID)).Err()
}
