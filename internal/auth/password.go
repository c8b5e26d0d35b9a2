package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tradeportal/portal_auth/internal/credential"
	"github.com/tradeportal/portal_auth/internal/events"
	"github.com/tradeportal/portal_auth/internal/notification"
	"github.com/tradeportal/portal_auth/internal/phone"
	"github.com/tradeportal/portal_auth/internal/verification"
)

// ChangePasswordInput carries the current and the replacement password.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
}

// ChangePassword replaces the password of an authenticated user.
func (s *Service) ChangePassword(ctx context.Context, userID int64, in ChangePasswordInput) error {
	if in.CurrentPassword == "" || in.NewPassword == "" {
		return invalid(ReasonInvalidInput, "current and new password are required", nil)
	}
	if err := checkPassword(in.NewPassword); err != nil {
		return err
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return newError(KindNotFound, ReasonUserNotFound, "user not found", err)
		}
		return internal(err)
	}
	if !s.hasher.Verify(in.CurrentPassword, user.PasswordHash) {
		return newError(KindUnauthenticated, ReasonWrongPassword, "current password is incorrect", nil)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return internal(err)
	}
	if err := s.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return newError(KindNotFound, ReasonUserNotFound, "user not found", err)
		}
		return internal(err)
	}

	s.logger.InfoContext(ctx, "auth.password changed", slog.Int64("user_id", user.ID))
	s.afterPasswordUpdate(ctx, user, "change")
	return nil
}

// PhoneInput identifies an account by phone number.
type PhoneInput struct {
	Phone       string
	CountryCode string
}

// CodeIssued describes a self-issued verification code that was sent.
type CodeIssued struct {
	Phone     string
	ExpiresAt time.Time
}

// RequestVerificationCode generates a code for a phone number, stores it and
// sends it by SMS. Delivery failures are logged; the code stays valid.
func (s *Service) RequestVerificationCode(ctx context.Context, in PhoneInput) (CodeIssued, error) {
	ph, err := s.parsePhone(in.Phone, in.CountryCode)
	if err != nil {
		return CodeIssued{}, err
	}
	code, err := s.codes.Generate(verification.DefaultLength)
	if err != nil {
		return CodeIssued{}, internal(err)
	}
	full := ph.full()
	vc, err := s.store.CreateVerificationCode(ctx, credential.VerificationCode{
		Phone:     full,
		Code:      code,
		Kind:      credential.KindSelfIssued,
		ExpiresAt: s.now().Add(verification.DefaultTTL),
	})
	if err != nil {
		return CodeIssued{}, internal(err)
	}

	s.logger.InfoContext(ctx, "auth.verification code issued", slog.String("phone", phone.Mask(full)))
	s.notify(ctx, s.sms, notification.Message{
		Kind:        notification.KindVerificationCode,
		Destination: full,
		Body:        "Your verification code is " + code + ". It expires in 10 minutes.",
	})
	return CodeIssued{Phone: full, ExpiresAt: vc.ExpiresAt}, nil
}

// RequestPasswordReset asks the OTP gateway to send a reset code. Unknown
// phone numbers succeed silently so callers cannot discover which numbers have accounts.
func (s *Service) RequestPasswordReset(ctx context.Context, in PhoneInput) error {
	ph, err := s.parsePhone(in.Phone, in.CountryCode)
	if err != nil {
		return err
	}
	// Without a gateway every number gets the same silent answer.
	if s.gateway == nil {
		s.logger.WarnContext(ctx, "auth.reset requested but no otp gateway is configured")
		return nil
	}
	if _, err := s.store.FindUserByPhone(ctx, ph.number, ph.countryCode); err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.logger.DebugContext(ctx, "auth.reset requested for unknown phone")
			return nil
		}
		return internal(err)
	}

	full := ph.full()
	if _, err := s.gateway.Send(ctx, full); err != nil {
		s.logger.WarnContext(ctx, "auth.reset otp send failed", slog.String("phone", phone.Mask(full)), slog.Any("error", err))
		return newError(KindUnavailable, ReasonGatewayUnavailable, "password reset is temporarily unavailable", err)
	}
	if _, err := s.store.CreateVerificationCode(ctx, credential.VerificationCode{
		Phone:     full,
		Kind:      credential.KindGatewayManaged,
		ExpiresAt: s.now().Add(verification.DefaultTTL),
	}); err != nil {
		return internal(err)
	}
	s.logger.InfoContext(ctx, "auth.reset otp sent", slog.String("phone", phone.Mask(full)))
	return nil
}

// ResetConfirmInput carries the gateway OTP and the replacement password.
type ResetConfirmInput struct {
	Phone       string
	CountryCode string
	OTP         string
	NewPassword string
}

// ConfirmPasswordReset checks the OTP with the gateway and, when it reports
// success, stores the new password and consumes the local tracking row.
func (s *Service) ConfirmPasswordReset(ctx context.Context, in ResetConfirmInput) error {
	ph, err := s.parsePhone(in.Phone, in.CountryCode)
	if err != nil {
		return err
	}
	otp := strings.TrimSpace(in.OTP)
	if otp == "" {
		return invalid(ReasonInvalidInput, "otp is required", nil)
	}
	if in.NewPassword == "" {
		return invalid(ReasonInvalidInput, "new password is required", nil)
	}
	if err := checkPassword(in.NewPassword); err != nil {
		return err
	}

	user, err := s.store.FindUserByPhone(ctx, ph.number, ph.countryCode)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			return newError(KindNotFound, ReasonUserNotFound, "no account for this phone number", err)
		}
		return internal(err)
	}
	if s.gateway == nil {
		return newError(KindUnavailable, ReasonGatewayUnavailable, "password reset is temporarily unavailable", nil)
	}

	full := ph.full()
	res, err := s.gateway.Verify(ctx, full, otp)
	if err != nil {
		s.logger.WarnContext(ctx, "auth.reset otp verify failed", slog.String("phone", phone.Mask(full)), slog.Any("error", err))
		return newError(KindUnavailable, ReasonGatewayUnavailable, "password reset is temporarily unavailable", err)
	}
	if !res.Verified {
		return invalid(ReasonOTPInvalid, "otp is invalid or has expired", nil)
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return internal(err)
	}
	err = s.store.WithinTx(ctx, func(tx credential.Store) error {
		vc, err := tx.LatestUnusedCode(ctx, credential.CodeQuery{Phone: full, Kind: credential.KindGatewayManaged})
		switch {
		case err == nil:
			// A concurrent confirm may have consumed it already; the gateway has the final say.
			if err := tx.MarkCodeUsed(ctx, vc.ID); err != nil && !errors.Is(err, credential.ErrCodeAlreadyUsed) {
				return err
			}
		case !errors.Is(err, credential.ErrNotFound):
			return err
		}
		return tx.UpdatePasswordHash(ctx, user.ID, hash)
	})
	if err != nil {
		return internal(err)
	}

	s.logger.InfoContext(ctx, "auth.password reset", slog.Int64("user_id", user.ID))
	s.afterPasswordUpdate(ctx, user, "reset")
	return nil
}

func (s *Service) afterPasswordUpdate(ctx context.Context, user credential.User, method string) {
	s.publish(ctx, eventSubject(method), events.PasswordEvent{
		UserID:    user.ID,
		Method:    method,
		ChangedAt: s.now().UTC(),
	})
	kind, subject := notification.KindPasswordChanged, "Your password was changed"
	if method == "reset" {
		kind, subject = notification.KindPasswordReset, "Your password was reset"
	}
	s.notify(ctx, s.mail, notification.Message{
		Kind:        kind,
		Destination: user.Email,
		Subject:     subject,
		Body:        "Hi " + user.Name + ", the password for your account was just updated. If this was not you, contact support immediately.",
	})
}

func eventSubject(method string) string {
	if method == "reset" {
		return events.PasswordReset
	}
	return events.PasswordChanged
}
