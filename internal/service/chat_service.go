package service

import (
	"context"
	"errors"
	"sync"

	"court-advisor-be/internal/constant"
	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/conversation"

	"github.com/google/uuid"
)

const chatModule = "CHAT"

var (
	ErrTurnInFlight  = errors.New("another request is already running for this session")
	ErrNothingToRate = errors.New("no answer is waiting for a rating")
)

const citationPreviewRunes = 200

type IChatService interface {
	Starters() []string
	CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, key string) (*dto.SessionResponse, error)
	// SendMessage blocks until the turn ends. observer, if set, sees every
	// decoded event as it arrives.
	SendMessage(ctx context.Context, key, prompt string, observer func(chatstream.Event)) (*dto.TurnResponse, error)
	ResetSession(ctx context.Context, key string) (*dto.SessionResponse, error)
	RateLastAnswer(ctx context.Context, key string, req dto.RateRequest) error
	EndSession(ctx context.Context, key string) error
}

type chatService struct {
	sessions contract.SessionRepository
	manager  *conversation.Manager
	feedback IFeedbackService
	logger   logger.ILogger

	// inFlight holds the keys of sessions being read and written back by a
	// turn, reset, rating or end. At most one of those runs per session.
	inFlight sync.Map
}

func NewChatService(
	sessions contract.SessionRepository,
	manager *conversation.Manager,
	feedback IFeedbackService,
	logger logger.ILogger,
) IChatService {
	return &chatService{
		sessions: sessions,
		manager:  manager,
		feedback: feedback,
		logger:   logger,
	}
}

func (s *chatService) Starters() []string {
	return append([]string{}, constant.StarterQuestions...)
}

func (s *chatService) CreateSession(ctx context.Context) (*dto.CreateSessionResponse, error) {
	key := uuid.NewString()
	session := conversation.NewSession()
	if err := s.sessions.Save(ctx, key, session); err != nil {
		return nil, err
	}

	s.logger.Info(chatModule, "Session created", map[string]interface{}{"user_id": session.UserID})
	return &dto.CreateSessionResponse{SessionKey: key, UserId: session.UserID}, nil
}

func (s *chatService) GetSession(ctx context.Context, key string) (*dto.SessionResponse, error) {
	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(key, session), nil
}

// acquire claims the session key for one load-modify-save cycle.
func (s *chatService) acquire(key string) (func(), error) {
	if _, busy := s.inFlight.LoadOrStore(key, struct{}{}); busy {
		return nil, ErrTurnInFlight
	}
	return func() { s.inFlight.Delete(key) }, nil
}

func (s *chatService) SendMessage(ctx context.Context, key, prompt string, observer func(chatstream.Event)) (*dto.TurnResponse, error) {
	release, err := s.acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	turn, err := s.manager.Submit(ctx, session, prompt, observer)
	if err != nil {
		return nil, err
	}

	// The turn is already logged; a cancelled request must not lose it.
	if err := s.sessions.Save(context.WithoutCancel(ctx), key, session); err != nil {
		s.logger.Error(chatModule, "Failed to save session after turn", map[string]interface{}{
			"user_id": session.UserID,
			"error":   err.Error(),
		})
		return nil, err
	}

	res := toTurnResponse(*turn)
	return &res, nil
}

func (s *chatService) ResetSession(ctx context.Context, key string) (*dto.SessionResponse, error) {
	release, err := s.acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	previous := session.UserID
	conversation.Reset(session)
	if err := s.sessions.Save(ctx, key, session); err != nil {
		return nil, err
	}

	s.logger.Info(chatModule, "Session reset", map[string]interface{}{
		"previous_user_id": previous,
		"user_id":          session.UserID,
	})
	return toSessionResponse(key, session), nil
}

func (s *chatService) RateLastAnswer(ctx context.Context, key string, req dto.RateRequest) error {
	release, err := s.acquire(key)
	if err != nil {
		return err
	}
	defer release()

	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	if session.LastLogID == nil {
		return ErrNothingToRate
	}

	if err := s.feedback.Rate(ctx, *session.LastLogID, req.Score, req.Comment); err != nil {
		return err
	}

	conversation.ClearPendingRating(session)
	return s.sessions.Save(ctx, key, session)
}

// EndSession drops the session; its feedback records stay. Busy sessions
// cannot be ended.
func (s *chatService) EndSession(ctx context.Context, key string) error {
	release, err := s.acquire(key)
	if err != nil {
		return err
	}
	defer release()

	if _, err := s.sessions.Get(ctx, key); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.Info(chatModule, "Session ended", nil)
	return nil
}

func toSessionResponse(key string, session *conversation.Session) *dto.SessionResponse {
	history := make([]dto.TurnResponse, len(session.History))
	for i, t := range session.History {
		history[i] = toTurnResponse(t)
	}

	suggestions := session.PendingSuggestions
	if len(suggestions) > conversation.MaxSuggestions {
		suggestions = suggestions[:conversation.MaxSuggestions]
	}

	return &dto.SessionResponse{
		SessionKey:     key,
		UserId:         session.UserID,
		ConversationId: session.ConversationID,
		History:        history,
		Suggestions:    append([]string{}, suggestions...),
		LastLogId:      session.LastLogID,
	}
}

func toTurnResponse(t conversation.Turn) dto.TurnResponse {
	citations := make([]dto.CitationResponse, len(t.Citations))
	for i, c := range t.Citations {
		citations[i] = dto.CitationResponse{
			DocumentName: c.DocumentName,
			Content:      c.Content,
			Preview:      c.Preview(citationPreviewRunes),
			Score:        c.RelevanceScore,
			ScoreLabel:   c.ScoreLabel(),
		}
	}

	return dto.TurnResponse{
		Prompt:    t.Prompt,
		Answer:    t.AnswerText,
		Reasoning: t.ReasoningText,
		Citations: citations,
		MessageId: t.MessageID,
		LogId:     t.LogID,
		Timestamp: t.Timestamp,
	}
}
