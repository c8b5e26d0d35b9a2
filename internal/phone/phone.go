package phone

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultCountryCode is applied when a caller omits the dial code.
	DefaultCountryCode = "+62"

	defaultDialDigits = "62"
	minLength         = 9
	maxLength         = 13
)

var (
	// ErrInvalidLength is returned when a normalized number falls outside [9,13] digits.
	ErrInvalidLength = errors.New("phone number must be between 9 and 13 digits")
	// ErrInvalidCountryCode is returned for dial codes that are not 1-4 digits.
	ErrInvalidCountryCode = errors.New("country code must be 1 to 4 digits")
)

// Normalize reduces a raw phone string to the local subscriber form used for
// storage and comparison: digits only, without the default dial prefix or a
// trunk zero.
func Normalize(raw string) string {
	digits := digitsOnly(raw)
	for {
		switch {
		case strings.HasPrefix(digits, "0"):
			digits = digits[1:]
		case strings.HasPrefix(digits, defaultDialDigits):
			digits = digits[len(defaultDialDigits):]
		default:
			return digits
		}
	}
}

// ValidateLength checks a normalized number.
func ValidateLength(normalized string) error {
	if n := len(normalized); n < minLength || n > maxLength {
		return ErrInvalidLength
	}
	return nil
}

// NormalizeCountryCode returns the canonical "+<digits>" form, defaulting to
// DefaultCountryCode when raw is blank.
func NormalizeCountryCode(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultCountryCode, nil
	}
	digits := strings.TrimPrefix(raw, "+")
	if len(digits) == 0 || len(digits) > 4 || digitsOnly(digits) != digits {
		return "", fmt.Errorf("%w: %q", ErrInvalidCountryCode, raw)
	}
	return "+" + digits, nil
}

// Full joins the dial code digits and the normalized number. The result is the
// correlation key shared with the OTP gateway and the verification code table.
func Full(countryCode, normalized string) string {
	return digitsOnly(countryCode) + normalized
}

// Mask hides all but the last four digits, for logs.
func Mask(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
