package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/events"
	"court-advisor-be/pkg/llm"
)

const logModule = "Conversation"

var ErrEmptyPrompt = errors.New("prompt is empty")

// TurnError is returned by Submit when the turn ended in a Failure.
type TurnError struct {
	Failure chatstream.Failure
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed (%s): %s", e.Failure.Kind, e.Failure.Reason)
}

func (e *TurnError) Unwrap() error {
	return e.Failure
}

// LogEntry is what gets persisted for a completed turn.
type LogEntry struct {
	Question      string
	Answer        string
	SessionUserID string
	Reasoning     string
	Citations     []chatstream.Citation
	Timestamp     time.Time
}

// Recorder persists completed turns and returns the new record id.
type Recorder interface {
	Record(ctx context.Context, entry LogEntry) (uint, error)
}

type Option func(*Manager)

// WithInstruction appends text to every outbound prompt. The Turn and the
// feedback record keep the prompt as typed.
func WithInstruction(instruction string) Option {
	return func(m *Manager) {
		m.instruction = instruction
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) {
		m.publisher = p
	}
}

// WithHistoryReplay sends earlier turns along with each request, for
// providers without server-side conversations.
func WithHistoryReplay() Option {
	return func(m *Manager) {
		m.replayHistory = true
	}
}

type Manager struct {
	provider      llm.ConversationProvider
	recorder      Recorder
	publisher     events.Publisher
	logger        logger.ILogger
	instruction   string
	replayHistory bool
}

func NewManager(provider llm.ConversationProvider, recorder Recorder, log logger.ILogger, opts ...Option) *Manager {
	m := &Manager{
		provider: provider,
		recorder: recorder,
		logger:   log,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit runs one turn to its terminal event. Every decoded event is passed
// to observer (which may be nil) as it arrives.
//
// The session is only modified when the turn completes: on a Failure a
// *TurnError is returned and on cancellation ctx.Err() is returned, both with
// s left exactly as it was.
func (m *Manager) Submit(ctx context.Context, s *Session, prompt string, observer func(chatstream.Event)) (*Turn, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	req := llm.TurnRequest{
		Prompt:         prompt + m.instruction,
		UserID:         s.UserID,
		ConversationID: s.ConversationID,
	}
	if m.replayHistory {
		req.History = historyMessages(s.History)
	}

	var answer, reasoning strings.Builder
	var complete *chatstream.TurnComplete

	for evt := range m.provider.StartTurn(ctx, req) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if observer != nil {
			observer(evt)
		}

		switch e := evt.(type) {
		case chatstream.ReasoningDelta:
			reasoning.WriteString(e.Text)
		case chatstream.AnswerDelta:
			answer.WriteString(e.Text)
		case chatstream.TurnComplete:
			complete = &e
		case chatstream.Failure:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &TurnError{Failure: e}
		}
		if complete != nil {
			break
		}
	}

	if complete == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A provider that ends its sequence without a terminal event.
		return nil, &TurnError{Failure: chatstream.Failure{
			Kind:   chatstream.FailureIncomplete,
			Reason: chatstream.ReasonStreamClosed,
		}}
	}

	turn := Turn{
		Prompt:        prompt,
		AnswerText:    answer.String(),
		ReasoningText: reasoning.String(),
		Citations:     complete.Citations,
		MessageID:     complete.MessageID,
		Timestamp:     time.Now(),
	}
	if turn.Citations == nil {
		turn.Citations = []chatstream.Citation{}
	}

	// From here on the turn counts as done, so the rest uses a context the
	// caller can no longer cancel.
	finishCtx := context.WithoutCancel(ctx)

	turn.LogID = m.record(finishCtx, s.UserID, turn)
	suggestions := m.provider.RelatedQuestions(finishCtx, turn.MessageID, s.UserID)
	if len(suggestions) > MaxSuggestions {
		suggestions = suggestions[:MaxSuggestions]
	}

	s.History = append(s.History, turn)
	if complete.ConversationID != "" {
		s.ConversationID = complete.ConversationID
	}
	s.PendingSuggestions = append([]string{}, suggestions...)
	s.LastLogID = turn.LogID

	m.publish(finishCtx, events.TurnCompleted(
		s.UserID, s.ConversationID, turn.MessageID, turn.LogID,
		len(turn.AnswerText), len(turn.ReasoningText), len(turn.Citations),
	))

	return &turn, nil
}

// ClearPendingRating forgets the record offered for rating; suggestions stay.
func ClearPendingRating(s *Session) {
	s.LastLogID = nil
}

func (m *Manager) record(ctx context.Context, userID string, turn Turn) *uint {
	if m.recorder == nil {
		return nil
	}
	id, err := m.recorder.Record(ctx, LogEntry{
		Question:      turn.Prompt,
		Answer:        turn.AnswerText,
		SessionUserID: userID,
		Reasoning:     turn.ReasoningText,
		Citations:     turn.Citations,
		Timestamp:     turn.Timestamp,
	})
	if err != nil {
		m.logger.Error(logModule, "Failed to record turn", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID,
		})
		return nil
	}
	return &id
}

func (m *Manager) publish(ctx context.Context, evt events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, evt); err != nil {
		m.logger.Warn(logModule, "Failed to publish event", map[string]interface{}{
			"type":  evt.EventType(),
			"error": err.Error(),
		})
	}
}

func historyMessages(history []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)*2)
	for _, t := range history {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: t.Prompt},
			llm.Message{Role: llm.RoleAssistant, Content: t.AnswerText},
		)
	}
	return messages
}
