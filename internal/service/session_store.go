package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/handgame-backend/internal/config"
	"github.com/stemsi/handgame-backend/internal/model"
)

// ErrSnapshotNotFound is returned when no snapshot is cached for a session.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SessionStore keeps what outlives a session's controller: the last
// snapshot, the results queue and cached word videos.
type SessionStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LoadSnapshot(ctx context.Context, id uuid.UUID) (model.Snapshot, error)
	EnqueueResult(ctx context.Context, result *model.GameResult) error
	CachedVideo(ctx context.Context, text string) (model.WordVideo, bool)
	CacheVideo(ctx context.Context, video model.WordVideo) error
}

const videoCacheTTL = time.Hour

type redisSessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSessionStore stores snapshots under their cache keys for ttl.
func NewRedisSessionStore(rdb *redis.Client, ttl time.Duration) SessionStore {
	return &redisSessionStore{rdb: rdb, ttl: ttl}
}

func (s *redisSessionStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	id := snap.SessionID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.SessionSnapshotKey(id), raw, s.ttl)
	if snap.Summary != nil {
		summary, _ := json.Marshal(snap.Summary)
		pipe.Set(ctx, config.CacheKey.SessionSummaryKey(id), summary, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisSessionStore) LoadSnapshot(ctx context.Context, id uuid.UUID) (model.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.SessionSnapshotKey(id.String())).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Snapshot{}, ErrSnapshotNotFound
	}
	if err != nil {
		return model.Snapshot{}, err
	}

	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}

func (s *redisSessionStore) EnqueueResult(ctx context.Context, result *model.GameResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PersistResultsQueue, raw).Err()
}

func (s *redisSessionStore) CachedVideo(ctx context.Context, text string) (model.WordVideo, bool) {
	link, err := s.rdb.Get(ctx, config.CacheKey.WordVideoKey(text)).Result()
	if err != nil || link == "" {
		return model.WordVideo{}, false
	}
	return model.WordVideo{Text: text, URL: link}, true
}

func (s *redisSessionStore) CacheVideo(ctx context.Context, video model.WordVideo) error {
	return s.rdb.Set(ctx, config.CacheKey.WordVideoKey(video.Text), video.URL, videoCacheTTL).Err()
}
