package contract

import (
	"context"
	"errors"

	"court-advisor-be/pkg/conversation"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores conversation sessions by an opaque key. Get
// returns a copy; changes are only visible to others after Save.
type SessionRepository interface {
	Save(ctx context.Context, key string, session *conversation.Session) error
	Get(ctx context.Context, key string) (*conversation.Session, error)
	Delete(ctx context.Context, key string) error
}
