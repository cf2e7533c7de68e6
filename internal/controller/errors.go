package controller

import (
	"context"
	"errors"

	"court-advisor-be/internal/pkg/logger"
	"court-advisor-be/internal/pkg/serverutils"
	"court-advisor-be/internal/repository/contract"
	"court-advisor-be/internal/service"
	"court-advisor-be/pkg/conversation"

	"github.com/gofiber/fiber/v2"
)

// mapError answers with the status that matches a service error.
func mapError(ctx *fiber.Ctx, err error) error {
	var turnErr *conversation.TurnError
	if errors.As(err, &turnErr) {
		return ctx.Status(fiber.StatusBadGateway).JSON(
			serverutils.TurnFailureResponse(fiber.StatusBadGateway, string(turnErr.Failure.Kind), turnErr.Failure.Reason))
	}

	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, contract.ErrSessionNotFound), errors.Is(err, logger.ErrLogNotFound),
		errors.Is(err, service.ErrChatLogNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, service.ErrTurnInFlight), errors.Is(err, service.ErrNothingToRate):
		code = fiber.StatusConflict
	case errors.Is(err, conversation.ErrEmptyPrompt), errors.Is(err, service.ErrInvalidRating):
		code = fiber.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		code = fiber.StatusUnauthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = fiber.StatusRequestTimeout
	}
	return ctx.Status(code).JSON(serverutils.ErrorResponse(code, err.Error()))
}
