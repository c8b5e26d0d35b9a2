package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tradeportal/portal_auth/internal/auth"
)

// authLimits groups the per-route rate limiters.
type authLimits struct {
	login  fiber.Handler
	otp    fiber.Handler
	verify fiber.Handler
}

// RegisterAuthRoutes wires the public authentication endpoints and the
// bearer-protected ones under /auth.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, limits authLimits, bearer fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/verification-code", limits.otp, h.RequestCode)
	group.Post("/register", limits.verify, h.Register)
	group.Post("/login", limits.login, h.Login)
	group.Post("/password/change", bearer, h.ChangePassword)
	group.Post("/password/reset/request", limits.otp, h.RequestReset)
	group.Post("/password/reset/confirm", limits.verify, h.ConfirmReset)
}

// RegisterProfileRoutes wires endpoints for the authenticated account.
func RegisterProfileRoutes(r fiber.Router, h *auth.Handler, bearer fiber.Handler) {
	r.Get("/me", bearer, h.Me)
}
