// Package otp generates one-time reset codes and limits how often they can be
// guessed.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// DefaultLength is the number of digits in a reset code.
const DefaultLength = 6

// Generator produces a numeric code of the given length.
type Generator func(length int) (string, error)

// Generate returns a uniformly random numeric code of length digits. Leading
// zeros are kept.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}

	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for range length {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
