package controller

import (
	"bytes"
	"fmt"
	"strconv"

	"court-advisor-be/internal/dto"
	"court-advisor-be/internal/pkg/serverutils"
	"court-advisor-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IAdminController interface {
	RegisterRoutes(r fiber.Router)
	Login(ctx *fiber.Ctx) error
	GetChatLogs(ctx *fiber.Ctx) error
	GetChatLog(ctx *fiber.Ctx) error
	GetChatLogStats(ctx *fiber.Ctx) error
	ExportChatLogs(ctx *fiber.Ctx) error
	GetSystemLogs(ctx *fiber.Ctx) error
	GetLogDetail(ctx *fiber.Ctx) error
}

type adminController struct {
	service service.IAdminService
	secret  []byte
}

func NewAdminController(service service.IAdminService, jwtSecret string) IAdminController {
	return &adminController{
		service: service,
		secret:  []byte(jwtSecret),
	}
}

func (c *adminController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/admin/v1")

	// Public
	h.Post("/login", c.Login)

	h.Use(serverutils.JwtMiddleware(c.secret))

	// Feedback records
	h.Get("/logs", c.GetChatLogs)
	h.Get("/logs/:id", c.GetChatLog)
	h.Get("/stats", c.GetChatLogStats)
	h.Get("/export", c.ExportChatLogs)

	// Application log
	h.Get("/system-logs", c.GetSystemLogs)
	h.Get("/system-logs/:id", c.GetLogDetail)
}

func (c *adminController) Login(ctx *fiber.Ctx) error {
	var req dto.AdminLoginRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Login(ctx.UserContext(), req)
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Admin login successful", res))
}

// GetChatLogs accepts optional session_id, rated, page and limit query
// parameters; without limit every record is returned.
func (c *adminController) GetChatLogs(ctx *fiber.Ctx) error {
	filter := dto.ChatLogFilter{
		SessionId: ctx.Query("session_id"),
		RatedOnly: ctx.QueryBool("rated", false),
		Page:      ctx.QueryInt("page", 1),
		Limit:     ctx.QueryInt("limit", 0),
	}

	logs, err := c.service.GetChatLogs(ctx.UserContext(), filter)
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat logs", logs))
}

func (c *adminController) GetChatLog(ctx *fiber.Ctx) error {
	id, err := ctx.ParamsInt("id")
	if err != nil || id < 1 {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid log id"))
	}

	log, err := c.service.GetChatLog(ctx.UserContext(), uint(id))
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat log", log))
}

func (c *adminController) GetChatLogStats(ctx *fiber.Ctx) error {
	stats, err := c.service.GetChatLogStats(ctx.UserContext())
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat log stats", stats))
}

// ExportChatLogs renders the whole CSV before answering so a failed export
// still gets a JSON error instead of a truncated file.
func (c *adminController) ExportChatLogs(ctx *fiber.Ctx) error {
	var buf bytes.Buffer
	filename, err := c.service.ExportChatLogs(ctx.UserContext(), &buf)
	if err != nil {
		return mapError(ctx, err)
	}

	ctx.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	ctx.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return ctx.Send(buf.Bytes())
}

func (c *adminController) GetSystemLogs(ctx *fiber.Ctx) error {
	page, _ := strconv.Atoi(ctx.Query("page", "1"))
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	level := ctx.Query("level", "")

	logs, err := c.service.GetSystemLogs(ctx.UserContext(), page, limit, level)
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("System logs", logs))
}

func (c *adminController) GetLogDetail(ctx *fiber.Ctx) error {
	detail, err := c.service.GetLogDetail(ctx.UserContext(), ctx.Params("id"))
	if err != nil {
		return mapError(ctx, err)
	}
	return ctx.JSON(serverutils.SuccessResponse("Log detail", detail))
}
