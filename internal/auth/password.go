package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = 12

// PasswordHasher hashes secrets with bcrypt at a fixed cost.
type PasswordHasher struct {
	Cost int
}

// NewPasswordHasher returns a hasher for cost, falling back to DefaultCost
// when cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return PasswordHasher{Cost: cost}
}

// Hash returns the bcrypt hash of plain.
func (h PasswordHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// HashPassword hashes plain at DefaultCost.
func HashPassword(plain string) (string, error) {
	return PasswordHasher{Cost: DefaultCost}.Hash(plain)
}

// VerifyPassword reports whether plain matches hash. A malformed or empty hash
// never matches.
func VerifyPassword(plain, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// PasswordStamp fingerprints a stored password hash. bcrypt salts every hash,
// so the stamp changes whenever the password is set, even to the same value.
func PasswordStamp(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
