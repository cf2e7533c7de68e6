package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/pkg/conversation"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "chat:session:"

// SessionRepository keeps sessions in Redis so several API instances can
// serve the same session.
type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ contract.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(rdb *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{rdb: rdb, ttl: ttl}
}

func (r *SessionRepository) Save(ctx context.Context, key string, session *conversation.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.rdb.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, key string) (*conversation.Session, error) {
	data, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, contract.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session conversation.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.History == nil {
		session.History = []conversation.Turn{}
	}
	if session.PendingSuggestions == nil {
		session.PendingSuggestions = []string{}
	}
	return &session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, keyPrefix+key).Err()
}
