package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/tradeportal/portal_auth/internal/credential"
	"github.com/tradeportal/portal_auth/internal/events"
	"github.com/tradeportal/portal_auth/internal/logging"
	"github.com/tradeportal/portal_auth/internal/notification"
	"github.com/tradeportal/portal_auth/internal/otpgateway"
	"github.com/tradeportal/portal_auth/internal/password"
	"github.com/tradeportal/portal_auth/internal/phone"
	"github.com/tradeportal/portal_auth/internal/token"
	"github.com/tradeportal/portal_auth/internal/verification"
)

// Gateway is the external WhatsApp OTP provider.
type Gateway interface {
	Send(ctx context.Context, msisdn string) (otpgateway.SendResult, error)
	Verify(ctx context.Context, msisdn, otp string) (otpgateway.VerifyResult, error)
}

// CodeGenerator produces numeric verification codes.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

// Deps aggregates the collaborators of the auth service.
type Deps struct {
	Store   credential.Store
	Hasher  *password.Hasher
	Tokens  *token.Issuer
	Gateway Gateway
	Codes   CodeGenerator
	SMS     notification.Notifier
	Mail    notification.Notifier
	Events  events.Publisher
	Logger  *slog.Logger
	Now     func() time.Time

	// DefaultCountryCode applies when a request omits the dial code.
	DefaultCountryCode string
}

// Service sequences the registration, login, password and verification flows.
type Service struct {
	store     credential.Store
	hasher    *password.Hasher
	tokens    *token.Issuer
	gateway   Gateway
	codes     CodeGenerator
	sms       notification.Notifier
	mail      notification.Notifier
	events    events.Publisher
	logger    *slog.Logger
	now       func() time.Time
	defaultCC string
	dummyHash string
}

// NewService validates d and fills defaults for optional collaborators.
func NewService(d Deps) (*Service, error) {
	if d.Store == nil || d.Hasher == nil || d.Tokens == nil {
		return nil, errors.New("auth: store, hasher and token issuer are required")
	}
	s := &Service{
		store:   d.Store,
		hasher:  d.Hasher,
		tokens:  d.Tokens,
		gateway: d.Gateway,
		codes:   d.Codes,
		sms:     d.SMS,
		mail:    d.Mail,
		events:  d.Events,
		logger:  d.Logger,
		now:     d.Now,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	if s.codes == nil {
		s.codes = verification.Generator{}
	}
	if s.sms == nil {
		s.sms = notification.NewLoggerNotifier(s.logger)
	}
	if s.mail == nil {
		s.mail = notification.NewLoggerNotifier(s.logger)
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.defaultCC = phone.DefaultCountryCode
	if d.DefaultCountryCode != "" {
		cc, err := phone.NormalizeCountryCode(d.DefaultCountryCode)
		if err != nil {
			return nil, fmt.Errorf("auth: default country code: %w", err)
		}
		s.defaultCC = cc
	}

	// Unknown-email logins compare against this digest so they cost as much as real ones.
	dummy, err := s.hasher.Hash("Unused-Passw0rd")
	if err != nil {
		return nil, fmt.Errorf("auth: prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Authenticate validates a bearer token.
func (s *Service) Authenticate(raw string) (token.Identity, error) {
	id, err := s.tokens.Validate(raw)
	if err != nil {
		return token.Identity{}, newError(KindUnauthenticated, ReasonInvalidToken, "invalid or expired session", err)
	}
	return id, nil
}

// Profile loads the account behind an authenticated user id.
func (s *Service) Profile(ctx context.Context, userID int64) (credential.User, error) {
	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return credential.User{}, newError(KindNotFound, ReasonUserNotFound, "user not found", err)
		}
		return credential.User{}, internal(err)
	}
	return user, nil
}

// phoneInput is a normalized phone number together with its dial code.
type phoneInput struct {
	countryCode string
	number      string
}

func (p phoneInput) full() string { return phone.Full(p.countryCode, p.number) }

// parsePhone applies the shared normalization rule; every flow goes through it.
func (s *Service) parsePhone(rawPhone, rawCountryCode string) (phoneInput, error) {
	if strings.TrimSpace(rawCountryCode) == "" {
		rawCountryCode = s.defaultCC
	}
	cc, err := phone.NormalizeCountryCode(rawCountryCode)
	if err != nil {
		return phoneInput{}, invalid(ReasonInvalidPhone, "country code is invalid", err)
	}
	number := phone.Normalize(rawPhone)
	if err := phone.ValidateLength(number); err != nil {
		return phoneInput{}, invalid(ReasonInvalidPhone, err.Error(), err)
	}
	return phoneInput{countryCode: cc, number: number}, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validateEmail(email string) error {
	if email == "" {
		return invalid(ReasonInvalidInput, "email is required", nil)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid(ReasonInvalidInput, "email is invalid", err)
	}
	return nil
}

func checkPassword(pw string) error {
	if err := password.CheckPolicy(pw); err != nil {
		return invalid(ReasonWeakPassword, err.Error(), err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, subject string, data any) {
	if err := s.events.Publish(ctx, subject, data); err != nil {
		s.logger.WarnContext(ctx, "publish event failed", slog.String("subject", subject), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, n notification.Notifier, msg notification.Message) {
	if err := n.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "notification failed", slog.String("kind", msg.Kind), slog.Any("error", err))
	}
}
