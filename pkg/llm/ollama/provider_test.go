package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTurn_ReplaysHistoryAndSplitsReasoning(t *testing.T) {
	var got ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"<think>hm"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"</think>Yes."},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "qwen3", time.Second, logger.NewNopLogger())
	var events []chatstream.Event
	for e := range p.StartTurn(context.Background(), llm.TurnRequest{
		Prompt:         "And the fee?",
		ConversationID: "local-1",
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "Can I appeal?"},
			{Role: llm.RoleAssistant, Content: "Within 30 days."},
		},
	}) {
		events = append(events, e)
	}

	assert.Equal(t, "qwen3", got.Model)
	assert.True(t, got.Stream)
	require.Len(t, got.Messages, 3)
	assert.Equal(t, ollamaMessage{Role: "user", Content: "And the fee?"}, got.Messages[2])

	require.Len(t, events, 3)
	assert.Equal(t, chatstream.ReasoningDelta{Text: "hm"}, events[0])
	assert.Equal(t, chatstream.AnswerDelta{Text: "Yes."}, events[1])
	complete := events[2].(chatstream.TurnComplete)
	assert.Equal(t, "local-1", complete.ConversationID)
	assert.NotEmpty(t, complete.MessageID)
	assert.Empty(t, complete.Citations)
}

func TestStartTurn_NewConversationGetsLocalID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"ok"},"done":true}`)
	}))
	defer srv.Close()

	var last chatstream.Event
	for e := range NewOllamaProvider(srv.URL, "m", time.Second, logger.NewNopLogger()).StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}) {
		last = e
	}
	complete, ok := last.(chatstream.TurnComplete)
	require.True(t, ok)
	assert.NotEmpty(t, complete.ConversationID)
}

func runAgainst(t *testing.T, handler http.HandlerFunc) []chatstream.Event {
	t.Helper()
	srv := httptest.NewServer(handler)
	defer srv.Close()

	var events []chatstream.Event
	for e := range NewOllamaProvider(srv.URL, "m", time.Second, logger.NewNopLogger()).StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}) {
		events = append(events, e)
	}
	return events
}

func TestStartTurn_Failures(t *testing.T) {
	status := runAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	})
	require.Len(t, status, 1)
	failure := status[0].(chatstream.Failure)
	assert.Equal(t, chatstream.FailureTransport, failure.Kind)
	assert.Contains(t, failure.Reason, "unexpected status 404")

	assert.Equal(t, []chatstream.Event{
		chatstream.Failure{Kind: chatstream.FailureService, Reason: "out of memory"},
	}, runAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"out of memory"}`)
	}))

	assert.Equal(t, []chatstream.Event{
		chatstream.AnswerDelta{Text: "cut"},
		chatstream.Failure{Kind: chatstream.FailureIncomplete, Reason: chatstream.ReasonStreamClosed},
	}, runAgainst(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"cut"},"done":false}`)
		fmt.Fprintln(w, `not json`)
	}))
}

func TestStartTurn_ReadTimeoutIsPerLine(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		// Total time exceeds the read timeout but no single gap does.
		for _, word := range []string{"one ", "two ", "three"} {
			fmt.Fprintf(w, `{"message":{"content":%q},"done":false}`+"\n", word)
			flusher.Flush()
			time.Sleep(80 * time.Millisecond)
		}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := NewOllamaProvider(srv.URL, "m", 150*time.Millisecond, logger.NewNopLogger())
	var events []chatstream.Event
	for e := range p.StartTurn(context.Background(), llm.TurnRequest{Prompt: "hi"}) {
		events = append(events, e)
	}

	assert.Equal(t, []chatstream.Event{
		chatstream.AnswerDelta{Text: "one "},
		chatstream.AnswerDelta{Text: "two "},
		chatstream.AnswerDelta{Text: "three"},
		chatstream.Failure{Kind: chatstream.FailureTransport, Reason: chatstream.ReasonReadTimeout},
	}, events)
}

func TestRelatedQuestionsIsEmpty(t *testing.T) {
	p := NewOllamaProvider("", "m", 0, logger.NewNopLogger())
	assert.Equal(t, DefaultReadTimeout, p.ReadTimeout)
	assert.Equal(t, []string{}, p.RelatedQuestions(context.Background(), "msg", "user"))
}
