package handler

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/JioJio777/red-packet-fullstack/internal/cache"
)

// UserIDHeader carries the caller identity resolved by the upstream gateway.
const UserIDHeader = "X-User-ID"

const userIDKey = "user_id"

// RequireUser rejects requests without a usable caller identity and stores
// the trimmed id for handlers.
func RequireUser(v *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get(UserIDHeader))
		if err := v.Var(userID, "required,userid"); err != nil {
			return fail(c, fiber.StatusUnauthorized, CodeUnauthorized, "unauthorized")
		}
		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

// currentUser returns the id stored by RequireUser.
func currentUser(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// AccountProvisioner opens a caller's account on first contact.
type AccountProvisioner interface {
	EnsureAccount(ctx context.Context, userID string) error
}

// ProvisionAccount opens the account of every caller not seen recently.
// It runs after RequireUser. A provisioning failure is logged and the
// request continues; the caller is tried again on the next request.
func ProvisionAccount(p AccountProvisioner, known *cache.KnownUsers) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUser(c)
		if userID == "" || known.Seen(userID) {
			return c.Next()
		}
		if err := p.EnsureAccount(c.Context(), userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("failed to provision account")
			return c.Next()
		}
		known.Mark(userID)
		return c.Next()
	}
}
