package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenPair is the credential material of one login session. A pair is never
// deleted: logout or a newer login marks it revoked.
type TokenPair struct {
	ID                    string
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	UserID                string
	IsRevoked             bool
	CreatedAt             time.Time
}

// NewTokenPair builds an unsaved, non-revoked pair issued at now.
func NewTokenPair(accessToken, refreshToken, userID string, now time.Time) *TokenPair {
	now = now.UTC()
	return &TokenPair{
		ID:                    uuid.NewString(),
		AccessToken:           accessToken,
		RefreshToken:          refreshToken,
		AccessTokenExpiresAt:  now.Add(AccessTokenTTL),
		RefreshTokenExpiresAt: now.Add(RefreshTokenTTL),
		UserID:                userID,
		CreatedAt:             now,
	}
}

// RotateAccess replaces the access token in place and pushes its expiry to
// now+AccessTokenTTL. The refresh token and its expiry are left untouched.
func (p *TokenPair) RotateAccess(accessToken string, now time.Time) {
	p.AccessToken = accessToken
	p.AccessTokenExpiresAt = now.UTC().Add(AccessTokenTTL)
}

// TokenClaims is the payload carried by signed tokens. Refresh tokens only
// set Subject.
type TokenClaims struct {
	Subject string
	Email   string
	Role    Role
}
