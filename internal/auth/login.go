package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tradeportal/portal_auth/internal/credential"
)

// LoginInput carries email and password credentials.
type LoginInput struct {
	Email    string
	Password string
}

const badCredentials = "email or password is incorrect"

// Login authenticates by email and password. Unknown email and wrong password
// share one message; only the reason tag tells them apart.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return Session{}, invalid(ReasonInvalidInput, "email and password are required", nil)
	}

	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, credential.ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummyHash)
			return Session{}, newError(KindUnauthenticated, ReasonUserNotFound, badCredentials, nil)
		}
		return Session{}, internal(err)
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		s.logger.InfoContext(ctx, "auth.login rejected", slog.Int64("user_id", user.ID))
		return Session{}, newError(KindUnauthenticated, ReasonWrongPassword, badCredentials, nil)
	}

	tok, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return Session{}, internal(err)
	}
	s.logger.InfoContext(ctx, "auth.login succeeded", slog.Int64("user_id", user.ID))
	return Session{Token: tok.Value, ExpiresAt: tok.ExpiresAt, User: user}, nil
}
