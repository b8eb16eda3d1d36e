package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// LogoutMessage is the confirmation returned by every logout.
const LogoutMessage = "logged out successfully"

// AuthService implements login, access token refresh and logout.
//
// A user is in one of two session states, derived from the token store:
// NoSession (no non-revoked pair) or Active (exactly one). Login always goes
// through a revoke step before the new pair is saved.
type AuthService struct {
	users   ports.UserService
	tokens  ports.TokenRepository
	hasher  ports.PasswordHasher
	signer  ports.TokenSigner
	limiter ports.LoginLimiter
	logger  zerolog.Logger
	now     func() time.Time

	// dummyHash is compared against when the email is unknown, so both
	// failure paths pay for one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the auth use cases. A nil limiter disables login
// throttling.
func NewAuthService(
	users ports.UserService,
	tokens ports.TokenRepository,
	hasher ports.PasswordHasher,
	signer ports.TokenSigner,
	limiter ports.LoginLimiter,
	logger zerolog.Logger,
) *AuthService {
	if limiter == nil {
		limiter = noopLimiter{}
	}
	return &AuthService{
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		signer:  signer,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
}

// Login verifies the credentials, revokes every earlier session of the user
// and issues a new access/refresh pair. Unknown email and wrong password both
// fail with domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	allowed, err := s.limiter.Allow(ctx, email)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login limiter unavailable, allowing attempt")
	} else if !allowed {
		return nil, domain.ErrTooManyAttempts
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var hash string
	if user != nil {
		hash = user.PasswordHash
	} else {
		hash = s.dummyPasswordHash()
	}
	if !s.hasher.Verify(password, hash) || user == nil {
		if err := s.limiter.RecordFailure(ctx, email); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record login failure")
		}
		return nil, domain.ErrInvalidCredentials
	}
	if err := s.limiter.Reset(ctx, email); err != nil {
		s.logger.Warn().Err(err).Msg("failed to reset login failures")
	}

	if err := s.tokens.RevokeAllForUser(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("revoke previous sessions: %w", err)
	}

	accessToken, err := s.signer.Sign(domain.TokenClaims{
		Subject: user.ID,
		Email:   user.Email,
		Role:    user.Role,
	}, domain.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, err := s.signer.Sign(domain.TokenClaims{Subject: user.ID}, domain.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	pair := domain.NewTokenPair(accessToken, refreshToken, user.ID, s.now())
	if err := s.tokens.Save(ctx, pair); err != nil {
		return nil, fmt.Errorf("save token pair: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("token_id", pair.ID).Msg("user logged in")

	return &ports.LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Session(),
	}, nil
}

// RefreshToken mints a new access token for an active session. The refresh
// token itself is not reissued and keeps its expiry.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", domain.ErrInvalidRefreshToken
	}

	claims, err := s.signer.Verify(refreshToken)
	if err != nil || claims.Subject == "" {
		return "", domain.ErrInvalidRefreshToken
	}

	pair, err := s.tokens.FindActiveByRefreshToken(ctx, refreshToken, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return "", domain.ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("find token pair: %w", err)
	}

	// The refresh token only carries the subject; email and role come from
	// the current user record.
	user, err := s.users.FindOne(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrInvalidRefreshToken
		}
		return "", err
	}

	accessToken, err := s.signer.Sign(domain.TokenClaims{
		Subject: user.ID,
		Email:   user.Email,
		Role:    user.Role,
	}, domain.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	// A logout or login may have revoked the pair since it was read.
	pair.RotateAccess(accessToken, s.now())
	if err := s.tokens.UpdateAccess(ctx, pair); err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return "", domain.ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("update token pair: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Str("token_id", pair.ID).Msg("access token refreshed")
	return accessToken, nil
}

// Logout revokes every session of userID. Calling it without an active
// session is not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) (string, error) {
	if err := s.tokens.RevokeAllForUser(ctx, userID); err != nil {
		return "", fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.Info().Str("user_id", userID).Msg("user logged out")
	return LogoutMessage, nil
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("unknown-account-placeholder")
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to prepare placeholder hash")
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }
func (noopLimiter) RecordFailure(context.Context, string) error { return nil }
func (noopLimiter) Reset(context.Context, string) error         { return nil }
