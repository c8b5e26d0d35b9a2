package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tradeportal/portal_auth/internal/token"
)

const (
	localUserID = "user_id"
	localEmail  = "email"
)

// Authenticator validates a raw session token.
type Authenticator interface {
	Authenticate(raw string) (token.Identity, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer <token>"
// header. Missing, malformed, expired and mis-signed tokens all get the same 401.
func BearerAuth(a Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		scheme, raw, ok := strings.Cut(authz, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") {
			return unauthorized(c)
		}
		id, err := a.Authenticate(strings.TrimSpace(raw))
		if err != nil {
			return unauthorized(c)
		}
		c.Locals(localUserID, id.UserID)
		c.Locals(localEmail, id.Email)
		return c.Next()
	}
}

// UserID returns the authenticated user id stored by BearerAuth.
func UserID(c *fiber.Ctx) (int64, bool) {
	id, ok := c.Locals(localUserID).(int64)
	return id, ok
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired session", "reason": "invalid_token"})
}
