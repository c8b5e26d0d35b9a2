package verification

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	// DefaultLength is the number of digits in a self-issued code.
	DefaultLength = 6
	// DefaultTTL is how long a code (self-issued or gateway-tracked) stays valid.
	DefaultTTL = 10 * time.Minute
)

// ErrInvalidLength is returned for non-positive code lengths.
var ErrInvalidLength = errors.New("code length must be positive")

// Generator produces numeric verification codes.
type Generator struct{}

// Generate draws a uniform integer in [10^(length-1), 10^length-1] and renders
// it in decimal, so the result always has exactly length digits.
func (Generator) Generate(length int) (string, error) {
	return Generate(length)
}

// Generate is the package-level form of Generator.Generate.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", ErrInvalidLength
	}
	lo := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	hi := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	span := new(big.Int).Sub(hi, lo)

	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return n.Add(n, lo).String(), nil
}
