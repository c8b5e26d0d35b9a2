package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tradeportal/portal_auth/internal/credential"
	"github.com/tradeportal/portal_auth/internal/middleware"
)

// Handler exposes the auth flows over HTTP.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type userResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	CountryCode     string    `json:"country_code"`
	PhoneVerified   bool      `json:"phone_verified"`
	EmailVerified   bool      `json:"email_verified"`
	TermsAccepted   bool      `json:"terms_accepted"`
	PrivacyAccepted bool      `json:"privacy_accepted"`
	CreatedAt       time.Time `json:"created_at"`
}

func toUserResponse(u credential.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Phone:           u.Phone,
		CountryCode:     u.CountryCode,
		PhoneVerified:   u.PhoneVerified,
		EmailVerified:   u.EmailVerified,
		TermsAccepted:   u.TermsAccepted,
		PrivacyAccepted: u.PrivacyAccepted,
		CreatedAt:       u.CreatedAt,
	}
}

type sessionResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func toSessionResponse(s Session) sessionResponse {
	return sessionResponse{Token: s.Token, TokenType: "Bearer", ExpiresAt: s.ExpiresAt, User: toUserResponse(s.User)}
}

type phoneRequest struct {
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
}

// RequestCode issues a self-issued verification code for registration.
func (h *Handler) RequestCode(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	issued, err := h.svc.RequestVerificationCode(c.UserContext(), PhoneInput{Phone: req.Phone, CountryCode: req.CountryCode})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "sent", "expires_at": issued.ExpiresAt})
}

type registerRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	CountryCode   string `json:"country_code"`
	Password      string `json:"password"`
	Code          string `json:"code"`
	AcceptTerms   bool   `json:"accept_terms"`
	AcceptPrivacy bool   `json:"accept_privacy"`
}

// Register creates an account and returns a session token.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Register(c.UserContext(), RegisterInput(req))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(toSessionResponse(sess))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login validates credentials and returns a session token.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	sess, err := h.svc.Login(c.UserContext(), LoginInput(req))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(toSessionResponse(sess))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword requires a bearer token.
func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ChangePassword(c.UserContext(), userID, ChangePasswordInput(req)); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "password_changed"})
}

// RequestReset always answers 202 for well-formed input so account existence
// cannot be inferred.
func (h *Handler) RequestReset(c *fiber.Ctx) error {
	var req phoneRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.RequestPasswordReset(c.UserContext(), PhoneInput{Phone: req.Phone, CountryCode: req.CountryCode}); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"status": "if the number is registered, an otp has been sent"})
}

type resetConfirmRequest struct {
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// ConfirmReset sets a new password after the gateway accepts the OTP.
func (h *Handler) ConfirmReset(c *fiber.Ctx) error {
	var req resetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.ConfirmPasswordReset(c.UserContext(), ResetConfirmInput(req)); err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "password_reset"})
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	user, err := h.svc.Profile(c.UserContext(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(toUserResponse(user))
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnavailable:
		return http.StatusServiceUnavailable
	case KindExpired:
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	var e *Error
	if !errors.As(err, &e) {
		e = internal(err)
	}
	if e.Kind == KindInternal && h.logger != nil {
		h.logger.ErrorContext(c.UserContext(), "auth request failed",
			slog.String("path", c.Path()),
			slog.Any("error", err),
		)
	}
	return c.Status(StatusOf(e.Kind)).JSON(fiber.Map{"error": e.Message, "reason": e.Reason})
}
