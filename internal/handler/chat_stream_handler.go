package handler

import (
	"context"
	"encoding/json"
	"errors"

	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/internal/service"
	internalWS "court-advisor-be/internal/websocket"
	"court-advisor-be/pkg/chatstream"
	"court-advisor-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const streamModule = "ChatStreamHandler"

const (
	FrameReasoning = "reasoning"
	FrameAnswer    = "answer"
	FrameTurn      = "turn"
	FrameError     = "error"
)

// ChatStreamHandler runs turns submitted over a websocket and pushes every
// decoded event to the sockets watching the session.
type ChatStreamHandler struct {
	chat   service.IChatService
	hub    *internalWS.Hub
	logger logger.ILogger
}

func NewChatStreamHandler(chat service.IChatService, hub *internalWS.Hub, log logger.ILogger) *ChatStreamHandler {
	return &ChatStreamHandler{chat: chat, hub: hub, logger: log}
}

// ServeWs checks the session before upgrading so unknown keys get a plain 404.
func (h *ChatStreamHandler) ServeWs(c *fiber.Ctx) error {
	key := c.Params("key")
	if _, err := h.chat.GetSession(c.UserContext(), key); err != nil {
		if errors.Is(err, contract.ErrSessionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Session not found")
		}
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		// Turns still running when the socket closes are cancelled.
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		h.logger.Info(streamModule, "Starting stream session", map[string]interface{}{"session_key": key})
		internalWS.ServeStream(h.hub, conn, key, func(prompt string) {
			h.RunTurn(ctx, key, prompt)
		})
		h.logger.Info(streamModule, "Stream session ended", map[string]interface{}{"session_key": key})
	})(c)
}

// RunTurn submits prompt and emits one frame per event followed by a final
// turn or error frame.
func (h *ChatStreamHandler) RunTurn(ctx context.Context, key, prompt string) {
	observer := func(e chatstream.Event) {
		switch ev := e.(type) {
		case chatstream.ReasoningDelta:
			h.send(key, dto.StreamFrame{Type: FrameReasoning, Text: ev.Text})
		case chatstream.AnswerDelta:
			h.send(key, dto.StreamFrame{Type: FrameAnswer, Text: ev.Text})
		}
	}

	turn, err := h.chat.SendMessage(ctx, key, prompt, observer)
	if err != nil {
		h.send(key, errorFrame(err))
		return
	}
	h.send(key, dto.StreamFrame{Type: FrameTurn, Turn: turn})
}

func (h *ChatStreamHandler) send(key string, frame dto.StreamFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error(streamModule, "Failed to encode frame", map[string]interface{}{"error": err.Error()})
		return
	}
	h.hub.Send(key, payload)
}

func errorFrame(err error) dto.StreamFrame {
	var turnErr *conversation.TurnError
	switch {
	case errors.As(err, &turnErr):
		return dto.StreamFrame{Type: FrameError, Kind: string(turnErr.Failure.Kind), Reason: turnErr.Failure.Reason}
	case errors.Is(err, service.ErrTurnInFlight):
		return dto.StreamFrame{Type: FrameError, Kind: "busy", Reason: err.Error()}
	case errors.Is(err, conversation.ErrEmptyPrompt):
		return dto.StreamFrame{Type: FrameError, Kind: "invalid_prompt", Reason: err.Error()}
	case errors.Is(err, contract.ErrSessionNotFound):
		return dto.StreamFrame{Type: FrameError, Kind: "not_found", Reason: err.Error()}
	case errors.Is(err, context.Canceled):
		return dto.StreamFrame{Type: FrameError, Kind: "cancelled", Reason: err.Error()}
	}
	return dto.StreamFrame{Type: FrameError, Kind: "internal", Reason: err.Error()}
}
