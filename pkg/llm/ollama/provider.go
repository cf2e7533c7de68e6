package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/llm"

	"github.com/google/uuid"
)

const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultReadTimeout = 60 * time.Second
	logModule          = "Ollama"
)

type OllamaProvider struct {
	BaseURL   string
	ModelName string
	// ReadTimeout bounds the wait for the response headers and for each
	// streamed line, not the whole answer.
	ReadTimeout time.Duration
	Client      *http.Client

	logger logger.ILogger
}

// Ensure OllamaProvider implements ConversationProvider
var _ llm.ConversationProvider = &OllamaProvider{}

func NewOllamaProvider(baseURL, modelName string, readTimeout time.Duration, log logger.ILogger) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	return &OllamaProvider{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		ModelName:   modelName,
		ReadTimeout: readTimeout,
		Client:      &http.Client{},
		logger:      log,
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatChunk struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error,omitempty"`
}

// --- Interface Implementation ---

// StartTurn streams /api/chat. Ollama keeps no conversation state, so the
// session history is replayed on every turn and a local id stands in for the
// conversation.
func (o *OllamaProvider) StartTurn(ctx context.Context, req llm.TurnRequest) iter.Seq[chatstream.Event] {
	return func(yield func(chatstream.Event) bool) {
		messages := make([]ollamaMessage, 0, len(req.History)+1)
		for _, msg := range req.History {
			messages = append(messages, ollamaMessage{Role: msg.Role, Content: msg.Content})
		}
		messages = append(messages, ollamaMessage{Role: llm.RoleUser, Content: req.Prompt})

		payload, err := json.Marshal(ollamaChatRequest{
			Model:    o.ModelName,
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			yield(chatstream.Failure{Kind: chatstream.FailureTransport, Reason: fmt.Sprintf("marshal request: %v", err)})
			return
		}

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var timedOut atomic.Bool
		watchdog := time.AfterFunc(o.ReadTimeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer watchdog.Stop()

		httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewReader(payload))
		if err != nil {
			yield(chatstream.Failure{Kind: chatstream.FailureTransport, Reason: fmt.Sprintf("create request: %v", err)})
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.Client.Do(httpReq)
		if err != nil {
			yield(chatstream.Failure{Kind: chatstream.FailureTransport, Reason: faultReason(ctx, err, timedOut.Load())})
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			yield(chatstream.Failure{
				Kind:   chatstream.FailureTransport,
				Reason: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			})
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		// Chunks are re-expressed as protocol events so reasoning markers are
		// split by the same decoder the Dify path uses.
		dec := chatstream.NewDecoder()
		emit := func(events []chatstream.Event) bool {
			for _, e := range events {
				if !yield(e) {
					return false
				}
			}
			return true
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			watchdog.Reset(o.ReadTimeout)

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var chunk ollamaChatChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				o.logger.Debug(logModule, "Skipping malformed chunk", map[string]interface{}{"error": err.Error()})
				continue
			}

			var events []chatstream.Event
			switch {
			case chunk.Error != "":
				events = dec.Feed(chatstream.ServiceError{Message: chunk.Error})
			case chunk.Done:
				events = dec.Feed(chatstream.Answer{Text: chunk.Message.Content})
				events = append(events, dec.Feed(chatstream.TurnEnd{
					ConversationID: conversationID,
					MessageID:      uuid.NewString(),
				})...)
			default:
				events = dec.Feed(chatstream.Answer{Text: chunk.Message.Content})
			}
			if !emit(events) || dec.Done() {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			emit(dec.Fail(chatstream.FailureTransport, faultReason(ctx, err, timedOut.Load())))
			return
		}
		emit(dec.Finish())
	}
}

func faultReason(ctx context.Context, err error, timedOut bool) string {
	switch {
	case timedOut:
		return chatstream.ReasonReadTimeout
	case ctx.Err() != nil:
		return ctx.Err().Error()
	case errors.Is(err, context.DeadlineExceeded):
		return chatstream.ReasonReadTimeout
	default:
		return fmt.Sprintf("connection error: %v", err)
	}
}

// RelatedQuestions is not offered by Ollama.
func (o *OllamaProvider) RelatedQuestions(ctx context.Context, messageID, userID string) []string {
	return []string{}
}
