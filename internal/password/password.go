package password

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength and MaxLength bound the accepted password length in characters.
	MinLength = 8
	MaxLength = 15
)

// ErrPolicy wraps every password policy violation.
var ErrPolicy = errors.New("password does not meet policy")

// Config holds the hashing parameters. Treat it as immutable after startup.
type Config struct {
	Cost int
}

// DefaultConfig uses bcrypt's default work factor.
func DefaultConfig() Config {
	return Config{Cost: bcrypt.DefaultCost}
}

// Hasher hashes and verifies passwords with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher validates cfg and builds a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.Cost)
	}
	return &Hasher{cost: cfg.Cost}, nil
}

// Hash returns a salted bcrypt digest of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plain matches digest. Malformed digests never match.
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}

// CheckPolicy enforces 8-15 characters with at least one lowercase letter,
// one uppercase letter and one digit.
func CheckPolicy(pw string) error {
	if n := utf8.RuneCountInString(pw); n < MinLength || n > MaxLength {
		return fmt.Errorf("%w: length must be between %d and %d characters", ErrPolicy, MinLength, MaxLength)
	}
	var lower, upper, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	switch {
	case !lower:
		return fmt.Errorf("%w: must contain a lowercase letter", ErrPolicy)
	case !upper:
		return fmt.Errorf("%w: must contain an uppercase letter", ErrPolicy)
	case !digit:
		return fmt.Errorf("%w: must contain a digit", ErrPolicy)
	}
	return nil
}
