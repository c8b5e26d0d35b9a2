package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	statusDisabled = "disabled"
	statusDown     = "down"
)

// connectionChecker is implemented by publishers that hold a live connection.
type connectionChecker interface {
	Connected() bool
}

// RegisterHealthRoutes adds liveness/readiness style endpoints. Dependencies
// that are not configured report "disabled" and do not fail the check.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		dbStatus, redisStatus, natsStatus := statusDisabled, statusDisabled, statusDisabled

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if d.DB != nil {
			dbStatus = "ok"
			if err := d.DB.Ping(ctx); err != nil {
				d.Logger.WarnContext(ctx, "health: postgres ping failed", "error", err)
				dbStatus = statusDown
			}
		}
		if d.Cache != nil {
			redisStatus = "ok"
			if err := d.Cache.Ping(ctx).Err(); err != nil {
				d.Logger.WarnContext(ctx, "health: redis ping failed", "error", err)
				redisStatus = statusDown
			}
		}
		if cc, ok := d.Events.(connectionChecker); ok {
			natsStatus = "ok"
			if !cc.Connected() {
				natsStatus = "disconnected"
			}
		}

		status := http.StatusOK
		for _, s := range []string{dbStatus, redisStatus, natsStatus} {
			if s != "ok" && s != statusDisabled {
				status = http.StatusServiceUnavailable
			}
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    fiber.Map{"postgres": dbStatus, "redis": redisStatus, "nats": natsStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
}
