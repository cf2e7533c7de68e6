package dify

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(seq iter.Seq[chatstream.Event]) []chatstream.Event {
	var events []chatstream.Event
	for e := range seq {
		events = append(events, e)
	}
	return events
}

func newTestProvider(baseURL, apiKey string) *DifyProvider {
	return NewDifyProvider(Config{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		ReadTimeout:       2 * time.Second,
		SuggestionTimeout: time.Second,
	}, logger.NewNopLogger())
}

func writeLines(w http.ResponseWriter, lines ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, line := range lines {
		fmt.Fprintf(w, "%s\n\n", line)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func TestStartTurn_StreamsDecodedEvents(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat-messages", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeLines(w,
			`event: ping`,
			`data: {"event": "message", "answer": "<think>check the act"}`,
			`data: {"event": "message", "answer": "</think>File within 90 days."}`,
			`data: {"event": "message_end", "conversation_id": "conv-7", "message_id": "msg-7",`+
				` "metadata": {"retriever_resources": [{"document_name": "act.pdf", "content": "s.49", "score": 0.8},`+
				` {"document_name": "faq.md", "content": "-", "score": 0.1}]}}`,
		)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL+"/v1/", "app-key")
	events := collect(p.StartTurn(context.Background(), llm.TurnRequest{
		Prompt:         "How long do I have to file?",
		UserID:         "user-1a2b3c4d",
		ConversationID: "conv-7",
	}))

	assert.Equal(t, "Bearer app-key", auth)
	assert.Equal(t, "How long do I have to file?", got.Query)
	assert.Equal(t, "user-1a2b3c4d", got.User)
	assert.Equal(t, "conv-7", got.ConversationID)
	assert.Equal(t, "streaming", got.ResponseMode)
	assert.NotNil(t, got.Inputs)

	require.Len(t, events, 3)
	assert.Equal(t, chatstream.ReasoningDelta{Text: "check the act"}, events[0])
	assert.Equal(t, chatstream.AnswerDelta{Text: "File within 90 days."}, events[1])
	complete, ok := events[2].(chatstream.TurnComplete)
	require.True(t, ok)
	assert.Equal(t, "conv-7", complete.ConversationID)
	assert.Equal(t, "msg-7", complete.MessageID)
	require.Len(t, complete.Citations, 1)
	assert.Equal(t, "act.pdf", complete.Citations[0].DocumentName)
}

func TestStartTurn_MissingAPIKeyNeverCallsServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	events := collect(newTestProvider(srv.URL, "").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	assert.Equal(t, []chatstream.Event{
		chatstream.Failure{Kind: chatstream.FailureConfiguration, Reason: chatstream.ReasonMissingAPIKey},
	}, events)
	assert.Zero(t, hits.Load())
}

func TestStartTurn_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"unauthorized"}`)
	}))
	defer srv.Close()

	events := collect(newTestProvider(srv.URL, "bad").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	assert.Equal(t, []chatstream.Event{
		chatstream.Failure{Kind: chatstream.FailureAuth, Reason: "unauthorized"},
	}, events)
}

func TestStartTurn_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	events := collect(newTestProvider(srv.URL, "key").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	require.Len(t, events, 1)
	failure, ok := events[0].(chatstream.Failure)
	require.True(t, ok)
	assert.Equal(t, chatstream.FailureTransport, failure.Kind)
	assert.Contains(t, failure.Reason, "unexpected status 502")
	assert.Contains(t, failure.Reason, "upstream exploded")
}

func TestStartTurn_ConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	events := collect(newTestProvider(baseURL, "key").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	require.Len(t, events, 1)
	failure := events[0].(chatstream.Failure)
	assert.Equal(t, chatstream.FailureTransport, failure.Kind)
	assert.Contains(t, failure.Reason, "connection error")
}

func TestStartTurn_StreamClosedEarlyKeepsPartialText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(w,
			`data: {"event": "message", "answer": "Partial "}`,
			`data: {broken`,
			`data: {"event": "message", "answer": "answer"}`,
		)
	}))
	defer srv.Close()

	events := collect(newTestProvider(srv.URL, "key").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	assert.Equal(t, []chatstream.Event{
		chatstream.AnswerDelta{Text: "Partial "},
		chatstream.AnswerDelta{Text: "answer"},
		chatstream.Failure{Kind: chatstream.FailureIncomplete, Reason: chatstream.ReasonStreamClosed},
	}, events)
}

func TestStartTurn_ServiceErrorEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(w,
			`data: {"event": "message", "answer": "Hel"}`,
			`data: {"event": "error", "message": "model overloaded"}`,
			`data: {"event": "message", "answer": "lo"}`,
		)
	}))
	defer srv.Close()

	events := collect(newTestProvider(srv.URL, "key").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	assert.Equal(t, []chatstream.Event{
		chatstream.AnswerDelta{Text: "Hel"},
		chatstream.Failure{Kind: chatstream.FailureService, Reason: "model overloaded"},
	}, events)
}

func TestStartTurn_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(w, `data: {"event": "message", "answer": "slow"}`)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := newTestProvider(srv.URL, "key")
	p.ReadTimeout = 150 * time.Millisecond

	events := collect(p.StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}))

	assert.Equal(t, []chatstream.Event{
		chatstream.AnswerDelta{Text: "slow"},
		chatstream.Failure{Kind: chatstream.FailureTransport, Reason: chatstream.ReasonReadTimeout},
	}, events)
}

func TestStartTurn_ConsumerCanStopEarly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeLines(w,
			`data: {"event": "message", "answer": "one"}`,
			`data: {"event": "message", "answer": "two"}`,
			`data: {"event": "message_end", "conversation_id": "c"}`,
		)
	}))
	defer srv.Close()

	var seen []chatstream.Event
	for e := range newTestProvider(srv.URL, "key").StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}) {
		seen = append(seen, e)
		break
	}

	assert.Equal(t, []chatstream.Event{chatstream.AnswerDelta{Text: "one"}}, seen)
}

func TestRelatedQuestions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/messages/msg-1/suggested":
			assert.Equal(t, "user-1", r.URL.Query().Get("user"))
			assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
			fmt.Fprint(w, `{"result": "success", "data": ["What fees apply?", "Where do I file?", "Can I appeal?", "Fourth?"]}`)
		case "/messages/msg-broken/suggested":
			fmt.Fprint(w, `{"data": [`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, "key")
	ctx := context.Background()

	assert.Equal(t, []string{"What fees apply?", "Where do I file?", "Can I appeal?", "Fourth?"}, p.RelatedQuestions(ctx, "msg-1", "user-1"))
	assert.Equal(t, []string{}, p.RelatedQuestions(ctx, "", "user-1"))
	assert.Equal(t, []string{}, p.RelatedQuestions(ctx, "msg-missing", "user-1"))
	assert.Equal(t, []string{}, p.RelatedQuestions(ctx, "msg-broken", "user-1"))
	assert.Equal(t, []string{}, newTestProvider(srv.URL, "").RelatedQuestions(ctx, "msg-1", "user-1"))
}
