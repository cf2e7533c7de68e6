package llm

import (
	"context"
	"iter"

	"court-advisor-be/pkg/chatstream"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TurnRequest is everything a provider needs to open one streamed turn.
type TurnRequest struct {
	Prompt         string
	UserID         string
	ConversationID string // empty starts a new conversation

	// History replays earlier turns for backends without server-side conversations.
	History []Message
}

// ConversationProvider defines the contract for a streaming Q&A backend.
type ConversationProvider interface {
	// StartTurn returns a lazy sequence of decoded events. The request is only
	// sent once the caller starts ranging; breaking out of the loop (or
	// cancelling ctx) closes the transport. Every sequence that runs to the end
	// yields exactly one terminal event (TurnComplete or Failure).
	StartTurn(ctx context.Context, req TurnRequest) iter.Seq[chatstream.Event]

	// RelatedQuestions is best effort: it returns an empty slice on any error
	// or when messageID is empty.
	RelatedQuestions(ctx context.Context, messageID, userID string) []string
}
