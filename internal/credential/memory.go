package credential

import (
	"context"
	"strings"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store for tests and local development.
type MemoryStore struct {
	txMu sync.Mutex

	mu       sync.RWMutex
	users    map[int64]User
	codes    []VerificationCode
	nextUser int64
	nextCode int64
	now      func() time.Time
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[int64]User), now: time.Now}
}

func (s *MemoryStore) FindUserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) FindUserByPhone(_ context.Context, phone, countryCode string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Phone == phone && u.CountryCode == countryCode {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *MemoryStore) FindUserByID(_ context.Context, id int64) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return User{}, ErrEmailTaken
		}
		if u.Phone == user.Phone {
			return User{}, ErrPhoneTaken
		}
	}
	s.nextUser++
	now := s.now().UTC()
	user.ID = s.nextUser
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now().UTC()
	s.users[id] = u
	return nil
}

func (s *MemoryStore) CreateVerificationCode(_ context.Context, code VerificationCode) (VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCode++
	code.ID = s.nextCode
	code.Used = false
	code.CreatedAt = s.now().UTC()
	if code.Kind == KindGatewayManaged {
		code.Code = ""
	}
	s.codes = append(s.codes, code)
	return code, nil
}

// LatestUnusedCode walks newest-first; rows are appended in creation order.
func (s *MemoryStore) LatestUnusedCode(_ context.Context, q CodeQuery) (VerificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.codes) - 1; i >= 0; i-- {
		c := s.codes[i]
		if c.Used || c.Phone != q.Phone || c.Kind != q.Kind {
			continue
		}
		return c, nil
	}
	return VerificationCode{}, ErrNotFound
}

func (s *MemoryStore) MarkCodeUsed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.codes {
		if s.codes[i].ID != id {
			continue
		}
		if s.codes[i].Used {
			return ErrCodeAlreadyUsed
		}
		s.codes[i].Used = true
		return nil
	}
	return ErrCodeAlreadyUsed
}

// WithinTx serializes transactions and restores a snapshot when fn fails.
// Writes made outside WithinTx while fn runs are lost on rollback, which is
// fine for tests and single-user development.
func (s *MemoryStore) WithinTx(_ context.Context, fn func(Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	users := make(map[int64]User, len(s.users))
	for k, v := range s.users {
		users[k] = v
	}
	codes := append([]VerificationCode(nil), s.codes...)
	nextUser, nextCode := s.nextUser, s.nextCode
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.users, s.codes = users, codes
		s.nextUser, s.nextCode = nextUser, nextCode
		s.mu.Unlock()
		return err
	}
	return nil
}

// Codes returns a copy of every stored code, oldest first.
func (s *MemoryStore) Codes() []VerificationCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]VerificationCode(nil), s.codes...)
}
