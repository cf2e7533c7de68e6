package controller

import (
	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/handler"
	"court-advisor-be/internal/pkg/serverutils"
	"court-advisor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	GetStarters(ctx *fiber.Ctx) error
	CreateSession(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	SendMessage(ctx *fiber.Ctx) error
	ResetSession(ctx *fiber.Ctx) error
	RateLastAnswer(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
}

type chatController struct {
	service service.IChatService
	stream  *handler.ChatStreamHandler
}

// NewChatController wires the REST routes; stream may be nil when the
// websocket route is not served.
func NewChatController(service service.IChatService, stream *handler.ChatStreamHandler) IChatController {
	return &chatController{
		service: service,
		stream:  stream,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Get("/starters", c.GetStarters)
	h.Post("/sessions", c.CreateSession)
	h.Get("/sessions/:key", c.GetSession)
	h.Delete("/sessions/:key", c.EndSession)
	h.Post("/sessions/:key/messages", c.SendMessage)
	h.Post("/sessions/:key/reset", c.ResetSession)
	h.Post("/sessions/:key/rating", c.RateLastAnswer)

	if c.stream != nil {
		h.Get("/sessions/:key/stream", c.stream.ServeWs)
	}
}

func (c *chatController) GetStarters(ctx *fiber.Ctx) error {
	res := dto.StarterQuestionsResponse{Questions: c.service.Starters()}
	return ctx.JSON(serverutils.SuccessResponse("Starter questions", res))
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	res, err := c.service.CreateSession(ctx.UserContext())
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *chatController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.service.GetSession(ctx.UserContext(), ctx.Params("key"))
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Session", res))
}

// SendMessage blocks until the turn finishes and returns the final turn.
func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.SendMessage(ctx.UserContext(), ctx.Params("key"), req.Prompt, nil)
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Turn completed", res))
}

func (c *chatController) ResetSession(ctx *fiber.Ctx) error {
	res, err := c.service.ResetSession(ctx.UserContext(), ctx.Params("key"))
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Session reset", res))
}

func (c *chatController) RateLastAnswer(ctx *fiber.Ctx) error {
	var req dto.RateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.service.RateLastAnswer(ctx.UserContext(), ctx.Params("key"), req); err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Rating saved", nil))
}

func (c *chatController) EndSession(ctx *fiber.Ctx) error {
	if err := c.service.EndSession(ctx.UserContext(), ctx.Params("key")); err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Session ended", nil))
}
