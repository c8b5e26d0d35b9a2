package credential

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u, err := s.CreateUser(ctx, User{Email: "a@b.com", Phone: "81234567890", CountryCode: "+62"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == 0 || u.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", u)
	}

	if _, err := s.CreateUser(ctx, User{Email: "A@B.com", Phone: "81111111111"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := s.CreateUser(ctx, User{Email: "c@d.com", Phone: "81234567890"}); !errors.Is(err, ErrPhoneTaken) {
		t.Fatalf("expected ErrPhoneTaken, got %v", err)
	}

	got, err := s.FindUserByEmail(ctx, "A@b.COM")
	if err != nil || got.ID != u.ID {
		t.Fatalf("case-insensitive lookup failed: %+v %v", got, err)
	}
	if _, err := s.FindUserByPhone(ctx, "81234567890", "+65"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected country code mismatch to miss, got %v", err)
	}
}

func TestMemoryStoreUsedCodeNeverReturned(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	c, err := s.CreateVerificationCode(ctx, VerificationCode{
		Phone: "6281234567890", Code: "123456", Kind: KindSelfIssued, ExpiresAt: time.Now().Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	q := CodeQuery{Phone: "6281234567890", Kind: KindSelfIssued}
	if got, err := s.LatestUnusedCode(ctx, q); err != nil || got.ID != c.ID {
		t.Fatalf("expected code, got %+v %v", got, err)
	}

	if err := s.MarkCodeUsed(ctx, c.ID); err != nil {
		t.Fatalf("mark used: %v", err)
	}
	if _, err := s.LatestUnusedCode(ctx, q); !errors.Is(err, ErrNotFound) {
		t.Fatalf("used code must not be returned, got %v", err)
	}
	if err := s.MarkCodeUsed(ctx, c.ID); !errors.Is(err, ErrCodeAlreadyUsed) {
		t.Fatalf("expected ErrCodeAlreadyUsed, got %v", err)
	}
}

func TestMemoryStoreLatestWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	exp := time.Now().Add(time.Minute)

	first, _ := s.CreateVerificationCode(ctx, VerificationCode{Phone: "62811", Kind: KindGatewayManaged, ExpiresAt: exp})
	second, _ := s.CreateVerificationCode(ctx, VerificationCode{Phone: "62811", Kind: KindGatewayManaged, Code: "ignored", ExpiresAt: exp})
	if second.Code != "" {
		t.Fatalf("gateway-managed rows must not carry a code, got %q", second.Code)
	}

	got, err := s.LatestUnusedCode(ctx, CodeQuery{Phone: "62811", Kind: KindGatewayManaged})
	if err != nil || got.ID != second.ID {
		t.Fatalf("expected latest row %d, got %+v %v", second.ID, got, err)
	}
	if _, err := s.LatestUnusedCode(ctx, CodeQuery{Phone: "62811", Kind: KindSelfIssued}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("kinds must not mix, got %v", err)
	}
	_ = first
}

func TestMemoryStoreWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	c, _ := s.CreateVerificationCode(ctx, VerificationCode{Phone: "62811", Code: "111111", Kind: KindSelfIssued, ExpiresAt: time.Now().Add(time.Minute)})

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx Store) error {
		if err := tx.MarkCodeUsed(ctx, c.ID); err != nil {
			return err
		}
		if _, err := tx.CreateUser(ctx, User{Email: "x@y.z", Phone: "811"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.LatestUnusedCode(ctx, CodeQuery{Phone: "62811", Kind: KindSelfIssued}); err != nil {
		t.Fatalf("code should be unused after rollback: %v", err)
	}
	if _, err := s.FindUserByEmail(ctx, "x@y.z"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("user should not exist after rollback: %v", err)
	}
}
