package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tradeportal/portal_auth/internal/credential"
	"github.com/tradeportal/portal_auth/internal/events"
	"github.com/tradeportal/portal_auth/internal/token"
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name          string
	Email         string
	Phone         string
	CountryCode   string
	Password      string
	Code          string
	AcceptTerms   bool
	AcceptPrivacy bool
}

// Session is a freshly authenticated account.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      credential.User
}

// Register creates an account after checking the phone verification code.
// The code is consumed and the user inserted in a single transaction.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	code := strings.TrimSpace(in.Code)
	switch {
	case name == "":
		return Session{}, invalid(ReasonInvalidInput, "name is required", nil)
	case in.Password == "":
		return Session{}, invalid(ReasonInvalidInput, "password is required", nil)
	case code == "":
		return Session{}, invalid(ReasonInvalidInput, "verification code is required", nil)
	case !in.AcceptTerms || !in.AcceptPrivacy:
		return Session{}, invalid(ReasonConsentRequired, "terms and privacy policy must be accepted", nil)
	}
	if err := validateEmail(email); err != nil {
		return Session{}, err
	}
	ph, err := s.parsePhone(in.Phone, in.CountryCode)
	if err != nil {
		return Session{}, err
	}
	if err := checkPassword(in.Password); err != nil {
		return Session{}, err
	}

	if _, err := s.store.FindUserByEmail(ctx, email); err == nil {
		return Session{}, newError(KindConflict, ReasonEmailTaken, "email is already registered", nil)
	} else if !errors.Is(err, credential.ErrNotFound) {
		return Session{}, internal(err)
	}
	if _, err := s.store.FindUserByPhone(ctx, ph.number, ph.countryCode); err == nil {
		return Session{}, newError(KindConflict, ReasonPhoneTaken, "phone number is already registered", nil)
	} else if !errors.Is(err, credential.ErrNotFound) {
		return Session{}, internal(err)
	}

	// Only the newest unused code for the phone counts; a re-request supersedes
	// every earlier one.
	vc, err := s.store.LatestUnusedCode(ctx, credential.CodeQuery{
		Phone: ph.full(),
		Kind:  credential.KindSelfIssued,
	})
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return Session{}, invalid(ReasonCodeInvalid, "verification code is invalid", nil)
		}
		return Session{}, internal(err)
	}
	if subtle.ConstantTimeCompare([]byte(vc.Code), []byte(code)) != 1 {
		return Session{}, invalid(ReasonCodeInvalid, "verification code is invalid", nil)
	}
	now := s.now()
	if !now.Before(vc.ExpiresAt) {
		return Session{}, newError(KindExpired, ReasonCodeExpired, "verification code has expired", nil)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Session{}, internal(err)
	}

	var (
		user credential.User
		tok  token.Token
	)
	err = s.store.WithinTx(ctx, func(tx credential.Store) error {
		if err := tx.MarkCodeUsed(ctx, vc.ID); err != nil {
			return err
		}
		created, err := tx.CreateUser(ctx, credential.User{
			Name:            name,
			Email:           email,
			Phone:           ph.number,
			CountryCode:     ph.countryCode,
			PasswordHash:    hash,
			PhoneVerified:   true,
			TermsAccepted:   true,
			PrivacyAccepted: true,
		})
		if err != nil {
			return err
		}
		issued, err := s.tokens.Issue(created.ID, created.Email)
		if err != nil {
			return err
		}
		user, tok = created, issued
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrCodeAlreadyUsed):
			return Session{}, invalid(ReasonCodeInvalid, "verification code is invalid", err)
		case errors.Is(err, credential.ErrEmailTaken):
			return Session{}, newError(KindConflict, ReasonEmailTaken, "email is already registered", err)
		case errors.Is(err, credential.ErrPhoneTaken):
			return Session{}, newError(KindConflict, ReasonPhoneTaken, "phone number is already registered", err)
		}
		return Session{}, internal(err)
	}

	s.logger.InfoContext(ctx, "auth.register completed", slog.Int64("user_id", user.ID), slog.String("country_code", user.CountryCode))
	s.publish(ctx, events.UserRegistered, events.UserRegisteredEvent{
		UserID:       user.ID,
		Email:        user.Email,
		CountryCode:  user.CountryCode,
		RegisteredAt: now.UTC(),
	})
	return Session{Token: tok.Value, ExpiresAt: tok.ExpiresAt, User: user}, nil
}
