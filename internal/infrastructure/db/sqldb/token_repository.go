package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/99minutos/user-management/internal/core/domain"
)

const tokenColumns = `id, access_token, refresh_token, access_token_expires_at, refresh_token_expires_at, user_id, is_revoked, created_at`

// TokenRepository persists token pairs in the tokens table.
type TokenRepository struct {
	store *Store
	now   func() time.Time
}

// RevokeAllForUser flags every live pair of userID as revoked.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := r.store.rebind(`UPDATE tokens SET is_revoked = ? WHERE user_id = ? AND is_revoked = ?`)
	if _, err := r.store.db.ExecContext(ctx, query, true, userID, false); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

// FindActiveByRefreshToken returns the unrevoked, unexpired pair of userID
// that holds refreshToken.
func (r *TokenRepository) FindActiveByRefreshToken(ctx context.Context, refreshToken, userID string) (*domain.TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := r.store.rebind(`
		SELECT ` + tokenColumns + `
		FROM tokens
		WHERE refresh_token = ? AND user_id = ? AND is_revoked = ? AND refresh_token_expires_at > ?
		ORDER BY created_at DESC
		LIMIT 1
	`)

	var (
		p                     domain.TokenPair
		accessExp, refreshExp int64
		createdAt             int64
	)
	err := r.store.db.QueryRowContext(ctx, query, refreshToken, userID, false, toMillis(r.now())).Scan(
		&p.ID,
		&p.AccessToken,
		&p.RefreshToken,
		&accessExp,
		&refreshExp,
		&p.UserID,
		&p.IsRevoked,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find token pair: %w", err)
	}

	p.AccessTokenExpiresAt = fromMillis(accessExp)
	p.RefreshTokenExpiresAt = fromMillis(refreshExp)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// Save inserts a newly issued pair.
func (r *TokenRepository) Save(ctx context.Context, pair *domain.TokenPair) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := r.store.rebind(`
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := r.store.db.ExecContext(ctx, query,
		pair.ID,
		pair.AccessToken,
		pair.RefreshToken,
		toMillis(pair.AccessTokenExpiresAt),
		toMillis(pair.RefreshTokenExpiresAt),
		pair.UserID,
		pair.IsRevoked,
		toMillis(pair.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("save token pair: %w", err)
	}
	return nil
}

// UpdateAccess writes the rotated access token of a pair that is still
// active. A revoked or expired row is left alone and reported as
// domain.ErrTokenNotFound.
func (r *TokenRepository) UpdateAccess(ctx context.Context, pair *domain.TokenPair) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := r.store.rebind(`
		UPDATE tokens
		SET access_token = ?, access_token_expires_at = ?
		WHERE id = ? AND is_revoked = ? AND refresh_token_expires_at > ?
	`)
	res, err := r.store.db.ExecContext(ctx, query,
		pair.AccessToken,
		toMillis(pair.AccessTokenExpiresAt),
		pair.ID,
		false,
		toMillis(r.now()),
	)
	if err != nil {
		return fmt.Errorf("update token pair: %w", err)
	}
	return requireAffected(res, domain.ErrTokenNotFound)
}
