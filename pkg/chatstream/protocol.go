package chatstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ProtocolEvent is one event parsed from a "data: <json>" line of the transport.
// It is a closed union: Answer, TurnEnd or ServiceError.
type ProtocolEvent interface {
	isProtocolEvent()
}

// Answer carries an incremental fragment of answer text (event "message").
type Answer struct {
	Text string
}

// TurnEnd closes a turn (event "message_end").
type TurnEnd struct {
	ConversationID string
	MessageID      string
	Metadata       Metadata
}

// ServiceError is an error reported by the service inside the stream (event "error").
type ServiceError struct {
	Message string
}

func (Answer) isProtocolEvent()       {}
func (TurnEnd) isProtocolEvent()      {}
func (ServiceError) isProtocolEvent() {}

const (
	EventMessage    = "message"
	EventMessageEnd = "message_end"
	EventError      = "error"

	dataPrefix = "data:"
)

// ErrMalformedLine is returned for data lines whose payload is not valid JSON.
var ErrMalformedLine = errors.New("malformed event line")

type wireEvent struct {
	Event          string   `json:"event"`
	Answer         string   `json:"answer"`
	ConversationID string   `json:"conversation_id"`
	MessageID      string   `json:"message_id"`
	Metadata       Metadata `json:"metadata"`
	Message        string   `json:"message"`
}

// ParseLine decodes one transport line.
// Lines that are not data lines, and data lines with an unknown event name,
// yield (nil, nil). Undecodable payloads yield ErrMalformedLine.
func ParseLine(line string) (ProtocolEvent, error) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil, nil
	}

	var w wireEvent
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	switch w.Event {
	case EventMessage:
		return Answer{Text: w.Answer}, nil
	case EventMessageEnd:
		return TurnEnd{
			ConversationID: w.ConversationID,
			MessageID:      w.MessageID,
			Metadata:       w.Metadata,
		}, nil
	case EventError:
		msg := w.Message
		if msg == "" {
			msg = defaultServiceErrorMsg
		}
		return ServiceError{Message: msg}, nil
	default:
		return nil, nil
	}
}
