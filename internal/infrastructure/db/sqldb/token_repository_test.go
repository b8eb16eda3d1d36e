package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/user-management/internal/core/domain"
)

func newTestPair(userID, refresh string, now time.Time) *domain.TokenPair {
	return domain.NewTokenPair("access-"+refresh, refresh, userID, now.Truncate(time.Millisecond))
}

func countActive(t *testing.T, s *Store, userID string) int {
	t.Helper()
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tokens WHERE user_id = ? AND is_revoked = ?`, userID, false).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestTokenRepository_SaveAndFindActive(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	pair := newTestPair("u1", "r1", time.Now())
	require.NoError(t, repo.Save(ctx, pair))

	got, err := repo.FindActiveByRefreshToken(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestTokenRepository_FindActiveMisses(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	require.NoError(t, repo.Save(ctx, newTestPair("u1", "live", time.Now())))

	expired := newTestPair("u1", "old", time.Now().Add(-domain.RefreshTokenTTL-time.Minute))
	require.NoError(t, repo.Save(ctx, expired))

	revoked := newTestPair("u2", "gone", time.Now())
	revoked.IsRevoked = true
	require.NoError(t, repo.Save(ctx, revoked))

	tests := []struct {
		name    string
		refresh string
		userID  string
	}{
		{name: "unknown token", refresh: "nope", userID: "u1"},
		{name: "wrong user", refresh: "live", userID: "u2"},
		{name: "expired", refresh: "old", userID: "u1"},
		{name: "revoked", refresh: "gone", userID: "u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.FindActiveByRefreshToken(ctx, tt.refresh, tt.userID)
			assert.ErrorIs(t, err, domain.ErrTokenNotFound)
		})
	}
}

func TestTokenRepository_RevokeAllForUser(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	require.NoError(t, repo.Save(ctx, newTestPair("u1", "a", time.Now())))
	require.NoError(t, repo.Save(ctx, newTestPair("u1", "b", time.Now())))
	require.NoError(t, repo.Save(ctx, newTestPair("u2", "c", time.Now())))

	require.NoError(t, repo.RevokeAllForUser(ctx, "u1"))
	assert.Equal(t, 0, countActive(t, s, "u1"))
	assert.Equal(t, 1, countActive(t, s, "u2"))

	// Idempotent, and revoked rows are kept.
	require.NoError(t, repo.RevokeAllForUser(ctx, "u1"))
	require.NoError(t, repo.RevokeAllForUser(ctx, "nobody"))

	var total int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&total))
	assert.Equal(t, 3, total)

	_, err := repo.FindActiveByRefreshToken(ctx, "a", "u1")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestTokenRepository_UpdateAccessInPlace(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	pair := newTestPair("u1", "r1", time.Now())
	require.NoError(t, repo.Save(ctx, pair))

	pair.RotateAccess("access-2", time.Now().Add(time.Minute).Truncate(time.Millisecond))
	require.NoError(t, repo.UpdateAccess(ctx, pair))

	got, err := repo.FindActiveByRefreshToken(ctx, "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, pair.AccessTokenExpiresAt, got.AccessTokenExpiresAt)
	assert.Equal(t, pair.RefreshTokenExpiresAt, got.RefreshTokenExpiresAt)

	var total int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM tokens`).Scan(&total))
	assert.Equal(t, 1, total)
}

func TestTokenRepository_SaveRejectsExistingID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	pair := newTestPair("u1", "r1", time.Now())
	require.NoError(t, repo.Save(ctx, pair))
	assert.Error(t, repo.Save(ctx, pair))
}

// A pair revoked between the read and the access update stays revoked.
func TestTokenRepository_UpdateAccessAfterRevoke(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	require.NoError(t, repo.Save(ctx, newTestPair("u1", "r1", time.Now())))

	loaded, err := repo.FindActiveByRefreshToken(ctx, "r1", "u1")
	require.NoError(t, err)

	require.NoError(t, repo.RevokeAllForUser(ctx, "u1"))

	loaded.RotateAccess("access-2", time.Now())
	err = repo.UpdateAccess(ctx, loaded)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	assert.Equal(t, 0, countActive(t, s, "u1"))
	_, err = repo.FindActiveByRefreshToken(ctx, "r1", "u1")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestTokenRepository_UpdateAccessExpired(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	repo := s.Tokens()

	pair := newTestPair("u1", "old", time.Now().Add(-domain.RefreshTokenTTL-time.Minute))
	require.NoError(t, repo.Save(ctx, pair))

	pair.RotateAccess("access-2", time.Now())
	assert.ErrorIs(t, repo.UpdateAccess(ctx, pair), domain.ErrTokenNotFound)
}
