package service

import (
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/user-management/internal/core/ports"
)

// DefaultBcryptCost is the fixed cost used for stored password hashes.
const DefaultBcryptCost = 10

var bcryptHashPattern = regexp.MustCompile(`^\$2[ayb]\$.{56}$`)

// BcryptHasher hashes passwords with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, or DefaultBcryptCost when cost
// is outside the range bcrypt accepts.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

// IsHashed reports whether value is a well-formed bcrypt hash: the fixed
// "$2a$"/"$2b$"/"$2y$" layout and a cost bcrypt accepts.
func IsHashed(value string) bool {
	if !bcryptHashPattern.MatchString(value) {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// Hash returns the bcrypt hash of plaintext. It always hashes; callers that
// may hand back a stored hash use KeepOrHash.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// KeepOrHash returns current unchanged when value is that stored hash, so
// re-saving an untouched password never re-hashes it. Any other value is
// hashed, including plaintext that happens to look like a bcrypt hash.
func KeepOrHash(hasher ports.PasswordHasher, value, current string) (string, error) {
	if value == current && IsHashed(current) {
		return current, nil
	}
	return hasher.Hash(value)
}

// Verify compares plaintext against hash using bcrypt's own comparison.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
