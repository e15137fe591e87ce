package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/internal/service"
)

const defaultPageSize = 10

// RedPacketServiceInterface defines the interface for red packet business logic.
type RedPacketServiceInterface interface {
	Create(ctx context.Context, senderID string, req *model.SendRedPacketRequest) (*model.RedPacket, error)
	Detail(ctx context.Context, id, viewerID string) (*model.RedPacketDetail, error)
	ListRecords(ctx context.Context, packetID string, page, pageSize int) (*model.Page[model.Claim], error)
}

// RedPacketHandler handles HTTP requests for sending and inspecting red packets.
type RedPacketHandler struct {
	service   RedPacketServiceInterface
	validator *validator.Validate
}

// NewRedPacketHandler creates a new RedPacketHandler with the given service and validator.
func NewRedPacketHandler(svc RedPacketServiceInterface, v *validator.Validate) *RedPacketHandler {
	return &RedPacketHandler{service: svc, validator: v}
}

// formatValidationError converts validator errors to client-facing messages.
func formatValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "Type":
				if tag == "required" {
					return "invalid request: type is required"
				}
				return "invalid request: type must be 1 (equal) or 2 (lucky)"
			case "TotalAmount":
				if tag == "required" {
					return "invalid request: total_amount is required"
				}
				if tag == "gte" {
					return "invalid request: total_amount must be at least 1"
				}
				return "invalid request: total_amount is invalid"
			case "TotalCount":
				if tag == "required" {
					return "invalid request: total_count is required"
				}
				if tag == "gte" || tag == "lte" {
					return "invalid request: total_count must be between 1 and 100"
				}
				return "invalid request: total_count is invalid"
			case "Page":
				return "invalid request: page must be at least 1"
			case "PageSize":
				return "invalid request: page_size must be between 1 and 100"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// parsePage reads page and page_size query parameters, defaulting to the
// first page of ten.
func parsePage(c *fiber.Ctx, v *validator.Validate) (model.PageQuery, string, bool) {
	q := model.PageQuery{Page: 1, PageSize: defaultPageSize}
	if err := c.QueryParser(&q); err != nil {
		return q, "invalid request: page and page_size must be integers", false
	}
	if err := v.Struct(q); err != nil {
		return q, formatValidationError(err), false
	}
	return q, "", true
}

// Send handles POST /api/red-packets requests to create a red packet.
func (h *RedPacketHandler) Send(c *fiber.Ctx) error {
	var req model.SendRedPacketRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request body")
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, formatValidationError(err))
	}

	senderID := currentUser(c)
	p, err := h.service.Create(c.Context(), senderID, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			return fail(c, fiber.StatusBadRequest, CodeInsufficientBal, "insufficient balance")
		case errors.Is(err, service.ErrInvalidAccount):
			return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "sender has no account")
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("sender_id", senderID).
			Msg("failed to create red packet")
		return internalError(c)
	}

	return ok(c, fiber.StatusCreated, p)
}

// Detail handles GET /api/red-packets/:id requests.
func (h *RedPacketHandler) Detail(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid id")
	}

	detail, err := h.service.Detail(c.Context(), id, currentUser(c))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			return fail(c, fiber.StatusNotFound, CodeNotFound, "red packet not found")
		}
		log.Error().Err(err).Str("packet_id", id).Msg("failed to get red packet")
		return internalError(c)
	}

	return ok(c, fiber.StatusOK, detail)
}

// Records handles GET /api/red-packets/:id/records requests.
func (h *RedPacketHandler) Records(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid id")
	}
	q, msg, valid := parsePage(c, h.validator)
	if !valid {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, msg)
	}

	page, err := h.service.ListRecords(c.Context(), id, q.Page, q.PageSize)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return fail(c, fiber.StatusNotFound, CodeNotFound, "red packet not found")
		case errors.Is(err, service.ErrInvalidRequest):
			return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request")
		}
		log.Error().Err(err).Str("packet_id", id).Msg("failed to list claim records")
		return internalError(c)
	}

	return ok(c, fiber.StatusOK, page)
}
