package dto

import "time"

type StarterQuestionsResponse struct {
	Questions []string `json:"questions"`
}

type CreateSessionResponse struct {
	SessionKey string `json:"session_key"`
	UserId     string `json:"user_id"`
}

type SessionResponse struct {
	SessionKey     string         `json:"session_key"`
	UserId         string         `json:"user_id"`
	ConversationId string         `json:"conversation_id"`
	History        []TurnResponse `json:"history"`
	Suggestions    []string       `json:"suggestions"`
	LastLogId      *uint          `json:"last_log_id"` // record still open for rating
}

type TurnResponse struct {
	Prompt    string             `json:"prompt"`
	Answer    string             `json:"answer"`
	Reasoning string             `json:"reasoning,omitempty"`
	Citations []CitationResponse `json:"citations"`
	MessageId string             `json:"message_id,omitempty"`
	LogId     *uint              `json:"log_id,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

type CitationResponse struct {
	DocumentName string  `json:"document_name"`
	Content      string  `json:"content"`
	Preview      string  `json:"preview"`
	Score        float64 `json:"score"`
	ScoreLabel   string  `json:"score_label"` // e.g. "85%"
}

type SendMessageRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

type RateRequest struct {
	Score   int    `json:"score" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

// StreamFrame is one websocket message of a streamed turn.
// Type is "reasoning", "answer", "turn" or "error".
type StreamFrame struct {
	Type   string        `json:"type"`
	Text   string        `json:"text,omitempty"`
	Turn   *TurnResponse `json:"turn,omitempty"`
	Kind   string        `json:"kind,omitempty"`
	Reason string        `json:"reason,omitempty"`
}
