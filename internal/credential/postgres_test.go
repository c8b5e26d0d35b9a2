package credential

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestPostgres connects to TEST_DATABASE_URL, migrates and empties the
// tables. The test is skipped when the variable is unset.
func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE users, verification_codes RESTART IDENTITY`)
	require.NoError(t, err)
	return NewPostgresStore(pool)
}

func TestPostgresStoreUsers(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, User{Name: "Ayu", Email: "ayu@example.com", Phone: "81234567890", CountryCode: "+62", PasswordHash: "h", PhoneVerified: true})
	require.NoError(t, err)
	assert.NotZero(t, u.ID)

	_, err = s.CreateUser(ctx, User{Name: "X", Email: "AYU@example.com", Phone: "81111111111", CountryCode: "+62", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = s.CreateUser(ctx, User{Name: "X", Email: "x@example.com", Phone: "81234567890", CountryCode: "+62", PasswordHash: "h"})
	assert.ErrorIs(t, err, ErrPhoneTaken)

	got, err := s.FindUserByEmail(ctx, "Ayu@Example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.True(t, got.PhoneVerified)

	require.NoError(t, s.UpdatePasswordHash(ctx, u.ID, "h2"))
	got, err = s.FindUserByPhone(ctx, "81234567890", "+62")
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)

	assert.ErrorIs(t, s.UpdatePasswordHash(ctx, 999, "h"), ErrNotFound)
	_, err = s.FindUserByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreCodes(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	exp := time.Now().Add(10 * time.Minute)

	_, err := s.CreateVerificationCode(ctx, VerificationCode{Phone: "6281234567890", Code: "111111", Kind: KindSelfIssued, ExpiresAt: exp})
	require.NoError(t, err)
	latest, err := s.CreateVerificationCode(ctx, VerificationCode{Phone: "6281234567890", Code: "222222", Kind: KindSelfIssued, ExpiresAt: exp})
	require.NoError(t, err)
	gw, err := s.CreateVerificationCode(ctx, VerificationCode{Phone: "6281234567890", Code: "ignored", Kind: KindGatewayManaged, ExpiresAt: exp})
	require.NoError(t, err)

	got, err := s.LatestUnusedCode(ctx, CodeQuery{Phone: "6281234567890", Kind: KindSelfIssued})
	require.NoError(t, err)
	assert.Equal(t, latest.ID, got.ID)
	assert.Equal(t, "222222", got.Code, "older unused codes are superseded")

	got, err = s.LatestUnusedCode(ctx, CodeQuery{Phone: "6281234567890", Kind: KindGatewayManaged})
	require.NoError(t, err)
	assert.Equal(t, gw.ID, got.ID)
	assert.Empty(t, got.Code)

	require.NoError(t, s.MarkCodeUsed(ctx, latest.ID))
	assert.ErrorIs(t, s.MarkCodeUsed(ctx, latest.ID), ErrCodeAlreadyUsed)
	got, err = s.LatestUnusedCode(ctx, CodeQuery{Phone: "6281234567890", Kind: KindSelfIssued})
	require.NoError(t, err)
	assert.Equal(t, "111111", got.Code)
}

func TestPostgresStoreWithinTxRollsBack(t *testing.T) {
	s := newTestPostgres(t)
	ctx := context.Background()
	code, err := s.CreateVerificationCode(ctx, VerificationCode{Phone: "6281234567890", Code: "123456", Kind: KindSelfIssued, ExpiresAt: time.Now().Add(time.Minute)})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, User{Name: "Ayu", Email: "ayu@example.com", Phone: "81234567890", CountryCode: "+62", PasswordHash: "h"})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.WithinTx(ctx, func(tx Store) error {
		if err := tx.MarkCodeUsed(ctx, code.ID); err != nil {
			return err
		}
		_, err := tx.CreateUser(ctx, User{Name: "Dup", Email: "ayu@example.com", Phone: "81299998888", CountryCode: "+62", PasswordHash: "h"})
		if err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, ErrEmailTaken)

	got, err := s.LatestUnusedCode(ctx, CodeQuery{Phone: "6281234567890", Kind: KindSelfIssued})
	require.NoError(t, err, "code consumption must roll back")
	assert.Equal(t, code.ID, got.ID)
}
