package memory

import (
	"context"
	"time"

	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/pkg/conversation"

	"github.com/patrickmn/go-cache"
)

type SessionRepository struct {
	cache *cache.Cache
}

var _ contract.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository keeps sessions for ttl after their last save and
// purges expired ones every ttl/6.
func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionRepository{
		cache: cache.New(ttl, ttl/6),
	}
}

func (r *SessionRepository) Save(_ context.Context, key string, session *conversation.Session) error {
	r.cache.Set(key, session.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Get(_ context.Context, key string) (*conversation.Session, error) {
	if x, found := r.cache.Get(key); found {
		return x.(*conversation.Session).Clone(), nil
	}
	return nil, contract.ErrSessionNotFound
}

func (r *SessionRepository) Delete(_ context.Context, key string) error {
	r.cache.Delete(key)
	return nil
}
