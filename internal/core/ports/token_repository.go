package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// TokenRepository defines persistence operations for token pairs.
type TokenRepository interface {
	// RevokeAllForUser marks every non-revoked pair of userID as revoked.
	// It is a no-op when there is none.
	RevokeAllForUser(ctx context.Context, userID string) error
	// FindActiveByRefreshToken returns the pair holding refreshToken for
	// userID that is neither revoked nor past its refresh expiry. Any miss
	// yields domain.ErrTokenNotFound.
	FindActiveByRefreshToken(ctx context.Context, refreshToken, userID string) (*domain.TokenPair, error)
	// Save inserts a newly issued pair.
	Save(ctx context.Context, pair *domain.TokenPair) error
	// UpdateAccess stores the rotated access token of pair. Only a pair that
	// is still unrevoked and unexpired is touched; otherwise it yields
	// domain.ErrTokenNotFound. The revocation flag is never written.
	UpdateAccess(ctx context.Context, pair *domain.TokenPair) error
}
