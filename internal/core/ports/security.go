package ports

import (
	"context"
	"time"

	"github.com/99minutos/user-management/internal/core/domain"
)

// PasswordHasher is the one-way hashing primitive.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenSigner signs and verifies time-limited tokens.
type TokenSigner interface {
	Sign(claims domain.TokenClaims, ttl time.Duration) (string, error)
	// Verify fails on a bad signature, a malformed token or an expired one.
	Verify(token string) (*domain.TokenClaims, error)
}

// LoginLimiter throttles repeated failed logins for the same email.
type LoginLimiter interface {
	Allow(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}
