package handler

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/model"
	"github.com/JioJio777/red-packet-fullstack/internal/service"
)

// ClaimServiceInterface defines the interface for claim business logic.
type ClaimServiceInterface interface {
	Claim(ctx context.Context, packetID, claimantID string) (*model.Claim, error)
}

// ClaimHandler handles HTTP requests for claim operations.
type ClaimHandler struct {
	service ClaimServiceInterface
}

// NewClaimHandler creates a new ClaimHandler with the given service.
func NewClaimHandler(svc ClaimServiceInterface) *ClaimHandler {
	return &ClaimHandler{service: svc}
}

// Claim handles POST /api/red-packets/:id/claim requests.
func (h *ClaimHandler) Claim(c *fiber.Ctx) error {
	packetID := c.Params("id")
	if packetID == "" {
		return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid id")
	}
	claimantID := currentUser(c)

	claim, err := h.service.Claim(c.Context(), packetID, claimantID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			return fail(c, fiber.StatusNotFound, CodeNotFound, "red packet not found")
		case errors.Is(err, service.ErrAlreadyClaimed):
			return fail(c, fiber.StatusConflict, CodeAlreadyClaimed, "already claimed")
		case errors.Is(err, service.ErrPacketDepleted):
			return fail(c, fiber.StatusGone, CodePacketDepleted, "red packet is empty")
		case errors.Is(err, service.ErrPacketExpired):
			return fail(c, fiber.StatusGone, CodePacketExpired, "red packet is expired")
		case errors.Is(err, service.ErrInvalidRequest):
			return fail(c, fiber.StatusBadRequest, CodeInvalidRequest, "invalid request")
		}
		log.Error().
			Err(err).
			Str("request_id", c.GetRespHeader("X-Request-ID")).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("packet_id", packetID).
			Str("claimant_id", claimantID).
			Msg("failed to claim red packet")
		return internalError(c)
	}

	log.Info().
		Str("request_id", c.GetRespHeader("X-Request-ID")).
		Str("packet_id", packetID).
		Str("claimant_id", claimantID).
		Int64("amount", claim.Amount).
		Msg("red packet claim served")

	return ok(c, fiber.StatusOK, model.ClaimResponse{Amount: claim.Amount, ClaimedAt: claim.ClaimedAt})
}
