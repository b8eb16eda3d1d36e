// Package token implements the signed-token primitive with HS256 JWTs.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/99minutos/user-management/internal/core/domain"
)

var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTSigner signs and verifies tokens with a shared HMAC secret.
type JWTSigner struct {
	secret []byte
	now    func() time.Time
}

func NewJWTSigner(secret string) *JWTSigner {
	return &JWTSigner{secret: []byte(secret), now: time.Now}
}

// Sign returns a token carrying c that expires ttl from now. Every token gets
// a random jti, so two tokens signed in the same second never collide.
func (s *JWTSigner) Sign(c domain.TokenClaims, ttl time.Duration) (string, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: c.Email,
		Role:  string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the payload.
func (s *JWTSigner) Verify(token string) (*domain.TokenClaims, error) {
	var parsed claims
	tkn, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}

	return &domain.TokenClaims{
		Subject: parsed.Subject,
		Email:   parsed.Email,
		Role:    domain.Role(parsed.Role),
	}, nil
}
