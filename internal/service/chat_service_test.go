package service

import (
	"context"
	"iter"
	"sync"
	"testing"
	"time"

	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/internal/repository/memory"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/conversation"
	"court-advisor-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every prompt with a fixed reply; gate, when set,
// holds the stream open until closed.
type stubProvider struct {
	mu       sync.Mutex
	requests []llm.TurnRequest
	gate     chan struct{}
	started  chan struct{}
	fail     *chatstream.Failure
}

func (p *stubProvider) StartTurn(ctx context.Context, req llm.TurnRequest) iter.Seq[chatstream.Event] {
	return func(yield func(chatstream.Event) bool) {
		p.mu.Lock()
		p.requests = append(p.requests, req)
		p.mu.Unlock()

		if !yield(chatstream.AnswerDelta{Text: "answer to " + req.Prompt}) {
			return
		}
		if p.started != nil {
			close(p.started)
		}
		if p.gate != nil {
			<-p.gate
		}
		if p.fail != nil {
			yield(*p.fail)
			return
		}
		yield(chatstream.TurnComplete{
			ConversationID: "conv-1",
			MessageID:      "msg-" + req.Prompt,
			Citations:      []chatstream.Citation{{DocumentName: "act.pdf", Content: "text", RelevanceScore: 0.853}},
		})
	}
}

func (p *stubProvider) RelatedQuestions(context.Context, string, string) []string {
	return []string{"s1", "s2", "s3", "s4"}
}

func newTestChatService(t *testing.T, provider llm.ConversationProvider) (IChatService, IFeedbackService) {
	t.Helper()
	log := logger.NewNopLogger()
	feedback := NewFeedbackService(newTestFactory(t), nil, log)
	manager := conversation.NewManager(provider, feedback, log)
	return NewChatService(memory.NewSessionRepository(time.Hour), manager, feedback, log), feedback
}

func TestChatService_Flow(t *testing.T) {
	ctx := context.Background()
	svc, feedback := newTestChatService(t, &stubProvider{})

	assert.Len(t, svc.Starters(), 3)

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^user-[0-9a-f]{8}$`, created.UserId)

	turn, err := svc.SendMessage(ctx, created.SessionKey, "q1", nil)
	require.NoError(t, err)
	assert.Equal(t, "answer to q1", turn.Answer)
	require.Len(t, turn.Citations, 1)
	assert.Equal(t, "85%", turn.Citations[0].ScoreLabel)
	require.NotNil(t, turn.LogId)

	view, err := svc.GetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", view.ConversationId)
	assert.Len(t, view.History, 1)
	assert.Equal(t, []string{"s1", "s2", "s3"}, view.Suggestions)
	assert.Equal(t, turn.LogId, view.LastLogId)

	require.NoError(t, svc.RateLastAnswer(ctx, created.SessionKey, dto.RateRequest{Score: 5, Comment: "thanks"}))
	view, err = svc.GetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	assert.Nil(t, view.LastLogId)
	assert.Len(t, view.Suggestions, 3)
	assert.ErrorIs(t, svc.RateLastAnswer(ctx, created.SessionKey, dto.RateRequest{Score: 4}), ErrNothingToRate)

	logs, err := feedback.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 5, *logs[0].Rating)
	assert.Equal(t, created.UserId, logs[0].SessionId)

	reset, err := svc.ResetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	assert.NotEqual(t, created.UserId, reset.UserId)
	assert.Empty(t, reset.History)
	assert.Empty(t, reset.ConversationId)

	// Reset leaves persisted records alone.
	logs, err = feedback.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, svc.EndSession(ctx, created.SessionKey))
	_, err = svc.GetSession(ctx, created.SessionKey)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
	assert.ErrorIs(t, svc.EndSession(ctx, created.SessionKey), contract.ErrSessionNotFound)
}

func TestChatService_UnknownSession(t *testing.T) {
	svc, _ := newTestChatService(t, &stubProvider{})
	_, err := svc.SendMessage(context.Background(), "missing", "q", nil)
	assert.ErrorIs(t, err, contract.ErrSessionNotFound)
}

func TestChatService_RejectsConcurrentTurn(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{gate: make(chan struct{}), started: make(chan struct{})}
	svc, _ := newTestChatService(t, provider)

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(ctx, created.SessionKey, "slow", nil)
		done <- err
	}()
	<-provider.started

	_, err = svc.SendMessage(ctx, created.SessionKey, "second", nil)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	_, err = svc.ResetSession(ctx, created.SessionKey)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.ErrorIs(t, svc.EndSession(ctx, created.SessionKey), ErrTurnInFlight)

	close(provider.gate)
	require.NoError(t, <-done)

	view, err := svc.GetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	assert.Len(t, view.History, 1)
}

func TestChatService_RatingDuringTurnKeepsTurn(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{}
	svc, feedback := newTestChatService(t, provider)

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, created.SessionKey, "first", nil)
	require.NoError(t, err)

	provider.gate = make(chan struct{})
	provider.started = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(ctx, created.SessionKey, "second", nil)
		done <- err
	}()
	<-provider.started

	err = svc.RateLastAnswer(ctx, created.SessionKey, dto.RateRequest{Score: 5})
	assert.ErrorIs(t, err, ErrTurnInFlight)

	close(provider.gate)
	require.NoError(t, <-done)

	view, err := svc.GetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	require.Len(t, view.History, 2)
	require.NotNil(t, view.LastLogId)

	require.NoError(t, svc.RateLastAnswer(ctx, created.SessionKey, dto.RateRequest{Score: 4}))
	rated, err := feedback.Get(ctx, *view.LastLogId)
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 4, *rated.Rating)
	assert.Equal(t, "second", rated.UserQuestion)
}

// heldFeedback blocks Rate until release is closed.
type heldFeedback struct {
	IFeedbackService
	entered chan struct{}
	release chan struct{}
}

func (f *heldFeedback) Rate(ctx context.Context, logId uint, score int, comment string) error {
	close(f.entered)
	<-f.release
	return f.IFeedbackService.Rate(ctx, logId, score, comment)
}

func TestChatService_TurnDuringRatingIsRejected(t *testing.T) {
	ctx := context.Background()
	log := logger.NewNopLogger()
	inner := NewFeedbackService(newTestFactory(t), nil, log)
	held := &heldFeedback{IFeedbackService: inner, entered: make(chan struct{}), release: make(chan struct{})}
	manager := conversation.NewManager(&stubProvider{}, inner, log)
	svc := NewChatService(memory.NewSessionRepository(time.Hour), manager, held, log)

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, created.SessionKey, "first", nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- svc.RateLastAnswer(ctx, created.SessionKey, dto.RateRequest{Score: 3})
	}()
	<-held.entered

	_, err = svc.SendMessage(ctx, created.SessionKey, "second", nil)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	_, err = svc.ResetSession(ctx, created.SessionKey)
	assert.ErrorIs(t, err, ErrTurnInFlight)
	assert.ErrorIs(t, svc.EndSession(ctx, created.SessionKey), ErrTurnInFlight)

	close(held.release)
	require.NoError(t, <-done)

	view, err := svc.GetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	assert.Len(t, view.History, 1)
	assert.Nil(t, view.LastLogId)
}

func TestChatService_FailedTurnKeepsSession(t *testing.T) {
	ctx := context.Background()
	provider := &stubProvider{fail: &chatstream.Failure{Kind: chatstream.FailureAuth, Reason: chatstream.ReasonUnauthorized}}
	svc, feedback := newTestChatService(t, provider)

	created, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	var streamed []chatstream.Event
	_, err = svc.SendMessage(ctx, created.SessionKey, "q", func(e chatstream.Event) { streamed = append(streamed, e) })

	var turnErr *conversation.TurnError
	require.ErrorAs(t, err, &turnErr)
	assert.Equal(t, chatstream.FailureAuth, turnErr.Failure.Kind)
	assert.Len(t, streamed, 2)

	view, err := svc.GetSession(ctx, created.SessionKey)
	require.NoError(t, err)
	assert.Empty(t, view.History)
	assert.Empty(t, view.ConversationId)

	logs, err := feedback.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
