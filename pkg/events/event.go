package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "TURN_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeTurnCompleted = "TURN_COMPLETED"
	TypeFeedbackRated = "FEEDBACK_RATED"
)

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// TurnCompleted describes a finished turn. Only sizes are carried, never the
// question or answer text.
func TurnCompleted(sessionUserID, conversationID, messageID string, logID *uint, answerLen, reasoningLen, citations int) BaseEvent {
	data := map[string]interface{}{
		"session_user_id":  sessionUserID,
		"conversation_id":  conversationID,
		"message_id":       messageID,
		"answer_length":    answerLen,
		"reasoning_length": reasoningLen,
		"citation_count":   citations,
	}
	if logID != nil {
		data["log_id"] = *logID
	}
	return BaseEvent{Type: TypeTurnCompleted, Data: data, OccurredAt: time.Now()}
}

func FeedbackRated(logID uint, sessionUserID string, score int, withComment bool) BaseEvent {
	return BaseEvent{
		Type: TypeFeedbackRated,
		Data: map[string]interface{}{
			"log_id":          logID,
			"session_user_id": sessionUserID,
			"score":           score,
			"with_comment":    withComment,
		},
		OccurredAt: time.Now(),
	}
}
