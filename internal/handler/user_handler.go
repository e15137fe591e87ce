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

// UserServiceInterface defines the per-user account and history queries.
type UserServiceInterface interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	ListSent(ctx context.Context, senderID string, page, pageSize int) (*model.Page[model.RedPacket], error)
	ListReceived(ctx context.Context, claimantID string, page, pageSize int) (*model.Page[model.ReceivedItem], error)
}

// UserHandler serves the caller's balance and their sent and received red packets.
type UserHandler struct {
	service   UserServiceInterface
	validator *validator.Validate
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserServiceInterface, v *validator.Validate) *UserHandler {
	return &UserHandler{service: svc, validator: v}
}

// Profile handles GET /api/user/profile.
func (h *UserHandler) Profile(c *fiber.Ctx) error {
	profile, err := h.service.Profile(c.Context(), currentUser(c))
	if err != nil {
		if errors.Is(err, service.ErrInvalidAccount) || errors.Is(err, service.ErrAccountsDisabled) {
			return fail(c, fiber.StatusNotFound, CodeNotFound, "account not found")
		}
		log.Error().Err(err).Str("user_id", currentUser(c)).Msg("failed to read profile")
		return internalError(c)
	}
	return ok(c, fiber.StatusOK, profile)
}

// Sent handles GET /api/user/red-packets/sent.
func (h *UserHandler) Sent(c *fiber.Ctx) error {
	q, msg, valid := parsePage(c, h.validator)
	if !valid {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, msg)
	}

	page, err := h.service.ListSent(c.Context(), currentUser(c), q.Page, q.PageSize)
	if err != nil {
		return h.listError(c, err, "failed to list sent red packets")
	}
	return ok(c, fiber.StatusOK, page)
}

// Received handles GET /api/user/red-packets/received.
func (h *UserHandler) Received(c *fiber.Ctx) error {
	q, msg, valid := parsePage(c, h.validator)
	if !valid {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, msg)
	}

	page, err := h.service.ListReceived(c.Context(), currentUser(c), q.Page, q.PageSize)
	if err != nil {
		return h.listError(c, err, "failed to list received red packets")
	}
	return ok(c, fiber.StatusOK, page)
}

func (h *UserHandler) listError(c *fiber.Ctx, err error, msg string) error {
	if errors.Is(err, service.ErrInvalidRequest) {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request")
	}
	log.Error().Err(err).Str("user_id", currentUser(c)).Msg(msg)
	return internalError(c)
}
