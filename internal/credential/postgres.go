package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation     = "23505"
	usersEmailIndex     = "users_email_key"
	usersPhoneIndex     = "users_phone_key"
	userColumns         = `id, name, email, phone, country_code, password_hash, phone_verified, email_verified, terms_accepted, privacy_accepted, created_at, updated_at`
	verificationColumns = `id, phone, COALESCE(code, ''), kind, expires_at, verified, created_at`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgresStore builds a Postgres-backed credential store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// FindUserByEmail looks a user up case-insensitively.
func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// FindUserByPhone looks a user up by normalized phone and country code.
func (s *PostgresStore) FindUserByPhone(ctx context.Context, phone, countryCode string) (User, error) {
	return s.scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1 AND country_code = $2`, phone, countryCode))
}

// FindUserByID fetches a user by primary key.
func (s *PostgresStore) FindUserByID(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// CreateUser inserts a user; email and phone uniqueness is enforced by the schema.
func (s *PostgresStore) CreateUser(ctx context.Context, user User) (User, error) {
	row := s.q.QueryRow(ctx, `INSERT INTO users (name, email, phone, country_code, password_hash, phone_verified, email_verified, terms_accepted, privacy_accepted)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at, updated_at`,
		user.Name, user.Email, user.Phone, user.CountryCode, user.PasswordHash,
		user.PhoneVerified, user.EmailVerified, user.TermsAccepted, user.PrivacyAccepted)
	if err := row.Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case usersEmailIndex:
				return User{}, ErrEmailTaken
			case usersPhoneIndex:
				return User{}, ErrPhoneTaken
			}
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	user.UpdatedAt = user.UpdatedAt.UTC()
	return user, nil
}

// UpdatePasswordHash replaces the stored digest and bumps updated_at.
func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	cmd, err := s.q.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateVerificationCode inserts a code row. Gateway-managed rows store NULL as code.
func (s *PostgresStore) CreateVerificationCode(ctx context.Context, code VerificationCode) (VerificationCode, error) {
	var value any
	if code.Kind == KindSelfIssued {
		value = code.Code
	}
	row := s.q.QueryRow(ctx, `INSERT INTO verification_codes (phone, code, kind, expires_at)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`, code.Phone, value, string(code.Kind), code.ExpiresAt.UTC())
	if err := row.Scan(&code.ID, &code.CreatedAt); err != nil {
		return VerificationCode{}, fmt.Errorf("insert verification code: %w", err)
	}
	code.CreatedAt = code.CreatedAt.UTC()
	return code, nil
}

// LatestUnusedCode returns the newest unused code for the phone and kind.
func (s *PostgresStore) LatestUnusedCode(ctx context.Context, q CodeQuery) (VerificationCode, error) {
	const query = `
        SELECT ` + verificationColumns + `
        FROM verification_codes
        WHERE phone = $1
          AND kind = $2
          AND verified = false
        ORDER BY created_at DESC, id DESC
        LIMIT 1`
	var (
		vc   VerificationCode
		kind string
	)
	err := s.q.QueryRow(ctx, query, q.Phone, string(q.Kind)).
		Scan(&vc.ID, &vc.Phone, &vc.Code, &kind, &vc.ExpiresAt, &vc.Used, &vc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return VerificationCode{}, ErrNotFound
		}
		return VerificationCode{}, fmt.Errorf("select verification code: %w", err)
	}
	vc.Kind = CodeKind(kind)
	vc.ExpiresAt = vc.ExpiresAt.UTC()
	vc.CreatedAt = vc.CreatedAt.UTC()
	return vc, nil
}

// MarkCodeUsed consumes a code exactly once.
func (s *PostgresStore) MarkCodeUsed(ctx context.Context, id int64) error {
	cmd, err := s.q.Exec(ctx, `UPDATE verification_codes SET verified = true WHERE id = $1 AND verified = false`, id)
	if err != nil {
		return fmt.Errorf("mark code used: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrCodeAlreadyUsed
	}
	return nil
}

// WithinTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&PostgresStore{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.CountryCode, &u.PasswordHash,
		&u.PhoneVerified, &u.EmailVerified, &u.TermsAccepted, &u.PrivacyAccepted, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("select user: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}
