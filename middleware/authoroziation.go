package middleware

import (
	"strings"

	"welfare-receipts-backend/config"
	"welfare-receipts-backend/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	payloadLocal      = "identity"
	accessTokenCookie = "access_token"
)

// ProtectedRoute resolves the acting identity from a Bearer token or the access_token
// cookie and stores the payload in c.Locals.
func ProtectedRoute(ctx *AppContext) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := bearerToken(c.Get(fiber.HeaderAuthorization))
		if raw == "" {
			raw = c.Cookies(accessTokenCookie)
		}
		if raw == "" {
			config.Logger.Debug("No access token provided in request", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Unauthorized",
				"error":   "Authentication required",
			})
		}

		payload, err := ctx.PasetoMaker.VerifyToken(raw)
		if err != nil {
			config.Logger.Debug("Invalid access token encountered", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Unauthorized",
				"error":   "Invalid or expired token",
			})
		}

		revoked, err := ctx.IsRevoked(c.UserContext(), payload)
		if err != nil {
			// Revocation list unavailable; the token itself is still valid.
			config.Logger.Warn("Could not check token revocation", zap.Error(err))
		}
		if revoked {
			config.Logger.Warn("Revoked token presented",
				zap.String("payload_id", payload.ID.String()),
				zap.String("identity", payload.Identity),
				zap.String("role", string(payload.Role)),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Unauthorized",
				"error":   "Session invalid. Please log in again.",
			})
		}

		c.Locals(payloadLocal, payload)
		return c.Next()
	}
}

// ActingActor returns the actor resolved by ProtectedRoute, or the zero Actor when the
// request was not authenticated.
func ActingActor(c *fiber.Ctx) token.Actor {
	payload, ok := c.Locals(payloadLocal).(*token.Payload)
	if !ok || payload == nil {
		return token.Actor{}
	}
	return payload.Actor()
}

// ActingIdentity is the opaque identity recorded as uploader, maker, validator or checker
func ActingIdentity(c *fiber.Ctx) string {
	return ActingActor(c).Identity
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
