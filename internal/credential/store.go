package credential

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a user or code lookup has no match.
	ErrNotFound = errors.New("credential: not found")
	// ErrEmailTaken is returned when inserting a user whose email already exists.
	ErrEmailTaken = errors.New("credential: email already registered")
	// ErrPhoneTaken is returned when inserting a user whose phone already exists.
	ErrPhoneTaken = errors.New("credential: phone already registered")
	// ErrCodeAlreadyUsed is returned when a code was consumed by someone else first.
	ErrCodeAlreadyUsed = errors.New("credential: verification code already used")
)

// Store persists users and verification codes.
type Store interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	FindUserByPhone(ctx context.Context, phone, countryCode string) (User, error)
	FindUserByID(ctx context.Context, id int64) (User, error)
	// CreateUser inserts user and returns it with the assigned ID and timestamps.
	CreateUser(ctx context.Context, user User) (User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	CreateVerificationCode(ctx context.Context, code VerificationCode) (VerificationCode, error)
	// LatestUnusedCode returns the most recently created unused code matching q.
	LatestUnusedCode(ctx context.Context, q CodeQuery) (VerificationCode, error)
	// MarkCodeUsed flips the used flag; it fails with ErrCodeAlreadyUsed if the
	// row was already consumed or does not exist.
	MarkCodeUsed(ctx context.Context, id int64) error

	// WithinTx runs fn against a Store bound to a single transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
