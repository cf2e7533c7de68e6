package chatstream

// Event is one decoded lifecycle event of a streamed turn.
// It is a closed union: ReasoningDelta, AnswerDelta, TurnComplete or Failure.
type Event interface {
	isEvent()
}

// ReasoningDelta carries text from inside a <think>...</think> segment.
type ReasoningDelta struct {
	Text string
}

// AnswerDelta carries user-visible answer text.
type AnswerDelta struct {
	Text string
}

// TurnComplete terminates a successful turn.
type TurnComplete struct {
	ConversationID string
	MessageID      string
	Citations      []Citation
}

// Failure terminates a failed turn. Deltas emitted before it stay valid.
type Failure struct {
	Kind   FailureKind
	Reason string
}

func (ReasoningDelta) isEvent() {}
func (AnswerDelta) isEvent()    {}
func (TurnComplete) isEvent()   {}
func (Failure) isEvent()        {}

// FailureKind classifies why a turn failed.
type FailureKind string

const (
	// FailureConfiguration means the client was missing credentials; no call was made.
	FailureConfiguration FailureKind = "configuration"
	// FailureAuth means the service rejected the credentials.
	FailureAuth FailureKind = "auth"
	// FailureTransport covers connection faults, timeouts and non-2xx statuses.
	FailureTransport FailureKind = "transport"
	// FailureService is an error event sent by the service inside the stream.
	FailureService FailureKind = "service"
	// FailureIncomplete means the stream ended before a terminal event.
	FailureIncomplete FailureKind = "incomplete_stream"
)

const (
	ReasonUnauthorized     = "unauthorized"
	ReasonStreamClosed     = "stream closed unexpectedly"
	ReasonMissingAPIKey    = "missing API key"
	ReasonReadTimeout      = "read timeout"
	defaultServiceErrorMsg = "service error"
)

// Error lets a Failure travel as an error value.
func (f Failure) Error() string {
	return string(f.Kind) + ": " + f.Reason
}

// IsTerminal reports whether e ends a turn.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case TurnComplete, Failure:
		return true
	}
	return false
}
