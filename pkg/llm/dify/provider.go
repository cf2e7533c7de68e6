package dify

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
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultReadTimeout       = 60 * time.Second
	DefaultSuggestionTimeout = 10 * time.Second

	chatEndpoint      = "/chat-messages"
	responseStreaming = "streaming"
	errorBodyLimit    = 512
	logModule         = "Dify"
)

// Ensure DifyProvider implements ConversationProvider
var _ llm.ConversationProvider = &DifyProvider{}

type Config struct {
	BaseURL string
	APIKey  string

	// ReadTimeout bounds the wait for the response headers and for each
	// subsequent line of the stream.
	ReadTimeout       time.Duration
	SuggestionTimeout time.Duration
}

type DifyProvider struct {
	BaseURL           string
	APIKey            string
	ReadTimeout       time.Duration
	SuggestionTimeout time.Duration
	Client            *http.Client

	logger logger.ILogger
	tracer trace.Tracer
}

func NewDifyProvider(cfg Config, log logger.ILogger) *DifyProvider {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.SuggestionTimeout <= 0 {
		cfg.SuggestionTimeout = DefaultSuggestionTimeout
	}
	return &DifyProvider{
		BaseURL:           strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:            cfg.APIKey,
		ReadTimeout:       cfg.ReadTimeout,
		SuggestionTimeout: cfg.SuggestionTimeout,
		// No client-wide timeout: a long answer may stream for minutes.
		// ReadTimeout is enforced per line instead.
		Client: &http.Client{},
		logger: log,
		tracer: otel.Tracer("court-advisor-be/pkg/llm/dify"),
	}
}

// --- Request/Response structs (Internal to this package) ---

type chatRequest struct {
	Inputs         map[string]interface{} `json:"inputs"`
	Query          string                 `json:"query"`
	ResponseMode   string                 `json:"response_mode"`
	User           string                 `json:"user"`
	ConversationID string                 `json:"conversation_id"`
}

type suggestedResponse struct {
	Result string   `json:"result"`
	Data   []string `json:"data"`
}

// --- Interface Implementation ---

func (d *DifyProvider) StartTurn(ctx context.Context, req llm.TurnRequest) iter.Seq[chatstream.Event] {
	return func(yield func(chatstream.Event) bool) {
		ctx, span := d.tracer.Start(ctx, "dify.StartTurn", trace.WithAttributes(
			attribute.String("dify.user", req.UserID),
			attribute.Bool("dify.new_conversation", req.ConversationID == ""),
		))
		defer span.End()

		fail := func(kind chatstream.FailureKind, reason string) {
			span.SetStatus(codes.Error, reason)
			d.logger.Warn(logModule, "Turn failed", map[string]interface{}{
				"kind":    string(kind),
				"reason":  reason,
				"user_id": req.UserID,
			})
			yield(chatstream.Failure{Kind: kind, Reason: reason})
		}

		if d.APIKey == "" {
			fail(chatstream.FailureConfiguration, chatstream.ReasonMissingAPIKey)
			return
		}

		payload, err := json.Marshal(chatRequest{
			Inputs:         map[string]interface{}{},
			Query:          req.Prompt,
			ResponseMode:   responseStreaming,
			User:           req.UserID,
			ConversationID: req.ConversationID,
		})
		if err != nil {
			fail(chatstream.FailureTransport, fmt.Sprintf("marshal request: %v", err))
			return
		}

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		var timedOut atomic.Bool
		watchdog := time.AfterFunc(d.ReadTimeout, func() {
			timedOut.Store(true)
			cancel()
		})
		defer watchdog.Stop()

		httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, d.BaseURL+chatEndpoint, bytes.NewReader(payload))
		if err != nil {
			fail(chatstream.FailureTransport, fmt.Sprintf("create request: %v", err))
			return
		}
		httpReq.Header.Set("Authorization", "Bearer "+d.APIKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		resp, err := d.Client.Do(httpReq)
		if err != nil {
			fail(chatstream.FailureTransport, d.faultReason(ctx, err, timedOut.Load()))
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode == http.StatusUnauthorized {
			fail(chatstream.FailureAuth, chatstream.ReasonUnauthorized)
			return
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
			fail(chatstream.FailureTransport, fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
			return
		}

		dec := chatstream.NewDecoder()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			watchdog.Reset(d.ReadTimeout)

			events, err := dec.FeedLine(scanner.Text())
			if err != nil {
				d.logger.Debug(logModule, "Skipping malformed stream line", map[string]interface{}{"error": err.Error()})
				continue
			}
			for _, e := range events {
				if f, ok := e.(chatstream.Failure); ok {
					span.SetStatus(codes.Error, f.Reason)
					d.logger.Warn(logModule, "Service reported an error", map[string]interface{}{"reason": f.Reason, "user_id": req.UserID})
				}
				if !yield(e) {
					return
				}
			}
			if dec.Done() {
				span.SetAttributes(attribute.Int("dify.malformed_lines", dec.Malformed()))
				return
			}
		}

		var tail []chatstream.Event
		if err := scanner.Err(); err != nil {
			reason := d.faultReason(ctx, err, timedOut.Load())
			tail = dec.Fail(chatstream.FailureTransport, reason)
		} else {
			tail = dec.Finish()
		}
		if dec.Malformed() > 0 {
			d.logger.Warn(logModule, "Stream contained malformed lines", map[string]interface{}{"count": dec.Malformed()})
		}
		for _, e := range tail {
			if f, ok := e.(chatstream.Failure); ok {
				span.SetStatus(codes.Error, f.Reason)
				d.logger.Warn(logModule, "Turn failed", map[string]interface{}{"kind": string(f.Kind), "reason": f.Reason})
			}
			if !yield(e) {
				return
			}
		}
	}
}

func (d *DifyProvider) faultReason(ctx context.Context, err error, timedOut bool) string {
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

func (d *DifyProvider) RelatedQuestions(ctx context.Context, messageID, userID string) []string {
	if messageID == "" || d.APIKey == "" {
		return []string{}
	}

	ctx, span := d.tracer.Start(ctx, "dify.RelatedQuestions")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.SuggestionTimeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/messages/%s/suggested?%s",
		d.BaseURL, url.PathEscape(messageID), url.Values{"user": {userID}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return []string{}
	}
	req.Header.Set("Authorization", "Bearer "+d.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		d.logger.Debug(logModule, "Related questions request failed", map[string]interface{}{"error": err.Error()})
		return []string{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Debug(logModule, "Related questions unavailable", map[string]interface{}{"status": resp.StatusCode})
		return []string{}
	}

	var body suggestedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Data == nil {
		return []string{}
	}
	return body.Data
}
