package conversation

import (
	"strings"
	"time"

	"court-advisor-be/pkg/chatstream"

	"github.com/google/uuid"
)

// MaxSuggestions caps the related questions kept for the next turn.
const MaxSuggestions = 3

// Turn is one finalized question/answer exchange. It is never modified after
// Submit returns it.
type Turn struct {
	Prompt        string                `json:"prompt"`
	AnswerText    string                `json:"answer"`
	ReasoningText string                `json:"reasoning,omitempty"`
	Citations     []chatstream.Citation `json:"citations"`
	MessageID     string                `json:"message_id,omitempty"`
	LogID         *uint                 `json:"log_id,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
}

// Session holds the continuity state of one user-facing conversation.
// A Session must not be used by two turns at once.
type Session struct {
	UserID             string   `json:"user_id"`
	ConversationID     string   `json:"conversation_id"`
	History            []Turn   `json:"history"`
	PendingSuggestions []string `json:"pending_suggestions"`

	// LastLogID is the feedback record still open for rating.
	LastLogID *uint `json:"last_log_id,omitempty"`
}

func NewSession() *Session {
	return &Session{
		UserID:             NewUserID(),
		History:            []Turn{},
		PendingSuggestions: []string{},
	}
}

// NewUserID returns "user-" followed by 8 hex characters.
func NewUserID() string {
	return "user-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Reset starts a new conversation under a new user id. Persisted feedback
// records are not touched.
func Reset(s *Session) {
	previous := s.UserID
	s.UserID = NewUserID()
	for s.UserID == previous {
		s.UserID = NewUserID()
	}
	s.ConversationID = ""
	s.History = []Turn{}
	s.PendingSuggestions = []string{}
	s.LastLogID = nil
}

// Clone returns a deep copy, used by stores that hand out snapshots.
func (s *Session) Clone() *Session {
	c := *s
	if s.History != nil {
		c.History = make([]Turn, len(s.History))
	}
	for i, t := range s.History {
		if t.Citations != nil {
			t.Citations = append(make([]chatstream.Citation, 0, len(t.Citations)), t.Citations...)
		}
		if t.LogID != nil {
			id := *t.LogID
			t.LogID = &id
		}
		c.History[i] = t
	}
	if s.PendingSuggestions != nil {
		c.PendingSuggestions = append(make([]string, 0, len(s.PendingSuggestions)), s.PendingSuggestions...)
	}
	if s.LastLogID != nil {
		id := *s.LastLogID
		c.LastLogID = &id
	}
	return &c
}
