package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Business codes carried in the response envelope. Zero means success; the
// HTTP status codes double as business codes for the generic failures.
const (
	CodeOK              = 0
	CodeInvalidRequest  = 400
	CodeUnauthorized    = 401
	CodeNotFound        = 404
	CodeInternal        = 500
	CodeInsufficientBal = 1001
	CodePacketDepleted  = 1002
	CodePacketExpired   = 1003
	CodeAlreadyClaimed  = 1004
)

// Response is the envelope every API endpoint returns.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func ok(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Response{Code: CodeOK, Message: "success", Data: data})
}

func fail(c *fiber.Ctx, status, code int, message string) error {
	return c.Status(status).JSON(Response{Code: code, Message: message, Data: nil})
}

func internalError(c *fiber.Ctx) error {
	return fail(c, fiber.StatusInternalServerError, CodeInternal, "internal server error")
}
