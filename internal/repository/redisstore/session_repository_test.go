package redisstore

import (
	"context"
	"testing"
	"time"

	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/conversation"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*SessionRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewSessionRepository(rdb, time.Hour), mr
}

func TestSessionRepository_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)

	logID := uint(12)
	s := conversation.NewSession()
	s.ConversationID = "conv-1"
	s.LastLogID = &logID
	s.PendingSuggestions = []string{"next?"}
	s.History = append(s.History, conversation.Turn{
		Prompt:     "q",
		AnswerText: "a",
		Citations:  []chatstream.Citation{{DocumentName: "act.pdf", RelevanceScore: 0.7}},
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})

	require.NoError(t, repo.Save(ctx, "key-1", s))
	assert.True(t, mr.Exists(keyPrefix+"key-1"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+"key-1"))

	got, err := repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, []string{"next?"}, got.PendingSuggestions)
	require.NotNil(t, got.LastLogID)
	assert.EqualValues(t, 12, *got.LastLogID)
	require.Len(t, got.History, 1)
	assert.Equal(t, "act.pdf", got.History[0].Citations[0].DocumentName)
	assert.True(t, s.History[0].Timestamp.Equal(got.History[0].Timestamp))

	require.NoError(t, repo.Delete(ctx, "key-1"))
	_, err = repo.Get(ctx, "key-1")
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestSessionRepository_Expiry(t *testing.T) {
	ctx := context.Background()
	repo, mr := newTestRepo(t)

	require.NoError(t, repo.Save(ctx, "short", conversation.NewSession()))
	mr.FastForward(2 * time.Hour)

	_, err := repo.Get(ctx, "short")
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestSessionRepository_CorruptPayload(t *testing.T) {
	repo, mr := newTestRepo(t)
	require.NoError(t, mr.Set(keyPrefix+"bad", "{"))

	_, err := repo.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, contract.ErrSessionNotFound)
}
