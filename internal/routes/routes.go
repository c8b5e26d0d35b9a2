package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradeportal/portal_auth/internal/auth"
	"github.com/tradeportal/portal_auth/internal/config"
	"github.com/tradeportal/portal_auth/internal/credential"
	"github.com/tradeportal/portal_auth/internal/events"
	"github.com/tradeportal/portal_auth/internal/logging"
	"github.com/tradeportal/portal_auth/internal/middleware"
	"github.com/tradeportal/portal_auth/internal/notification"
	"github.com/tradeportal/portal_auth/internal/password"
	"github.com/tradeportal/portal_auth/internal/token"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg   config.Config
	DB    *pgxpool.Pool
	Cache *redis.Client
	Store credential.Store
	// Gateway is nil when no OTP provider is configured; reset confirmation then answers 503.
	Gateway auth.Gateway
	SMS     notification.Notifier
	Mail    notification.Notifier
	Events  events.Publisher
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Store == nil {
		return fmt.Errorf("credential store is required")
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	RegisterHealthRoutes(app, d)

	hasher, err := password.NewHasher(password.Config{Cost: d.Cfg.BcryptCost})
	if err != nil {
		return err
	}
	issuer, err := token.NewIssuer([]byte(d.Cfg.JWTSecret))
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(auth.Deps{
		Store:              d.Store,
		Hasher:             hasher,
		Tokens:             issuer,
		Gateway:            d.Gateway,
		SMS:                d.SMS,
		Mail:               d.Mail,
		Events:             d.Events,
		Logger:             d.Logger,
		DefaultCountryCode: d.Cfg.DefaultCountryCode,
	})
	if err != nil {
		return err
	}
	authHandler := auth.NewHandler(authSvc, d.Logger)
	bearer := middleware.BearerAuth(authSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterAuthRoutes(api, authHandler, authLimits{
		login:  middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit),
		otp:    middleware.OTPRateLimit(d.Cache, d.Cfg.OTPRateLimit),
		verify: middleware.VerifyRateLimit(d.Cache, d.Cfg.VerifyRateLimit),
	}, bearer)
	RegisterProfileRoutes(api, authHandler, bearer)

	return nil
}
