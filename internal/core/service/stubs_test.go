package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users     []*domain.User
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrUserExists
		}
	}
	r.users = append(r.users, cloneUser(user))
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindAll(_ context.Context) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) error {
	for i, u := range r.users {
		if u.ID == user.ID {
			r.users[i] = cloneUser(user)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	for i, u := range r.users {
		if u.ID == id {
			r.users = append(r.users[:i], r.users[i+1:]...)
			return nil
		}
	}
	return domain.ErrUserNotFound
}

type stubTokenRepo struct {
	pairs   []*domain.TokenPair
	saveErr error
	now     func() time.Time
	// beforeUpdate runs at the start of UpdateAccess, after the pair was read.
	beforeUpdate func()
}

func newStubTokenRepo() *stubTokenRepo {
	return &stubTokenRepo{now: time.Now}
}

func clonePair(p *domain.TokenPair) *domain.TokenPair {
	clone := *p
	return &clone
}

func (r *stubTokenRepo) RevokeAllForUser(_ context.Context, userID string) error {
	for _, p := range r.pairs {
		if p.UserID == userID && !p.IsRevoked {
			p.IsRevoked = true
		}
	}
	return nil
}

// FindActiveByRefreshToken applies the same predicate the real stores use.
func (r *stubTokenRepo) FindActiveByRefreshToken(_ context.Context, refreshToken, userID string) (*domain.TokenPair, error) {
	for _, p := range r.pairs {
		if p.RefreshToken == refreshToken && p.UserID == userID && !p.IsRevoked && p.RefreshTokenExpiresAt.After(r.now()) {
			return clonePair(p), nil
		}
	}
	return nil, domain.ErrTokenNotFound
}

func (r *stubTokenRepo) Save(_ context.Context, pair *domain.TokenPair) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, p := range r.pairs {
		if p.ID == pair.ID {
			return fmt.Errorf("duplicate token pair %s", pair.ID)
		}
	}
	r.pairs = append(r.pairs, clonePair(pair))
	return nil
}

func (r *stubTokenRepo) UpdateAccess(_ context.Context, pair *domain.TokenPair) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	for _, p := range r.pairs {
		if p.ID == pair.ID && !p.IsRevoked && p.RefreshTokenExpiresAt.After(r.now()) {
			p.AccessToken = pair.AccessToken
			p.AccessTokenExpiresAt = pair.AccessTokenExpiresAt
			return nil
		}
	}
	return domain.ErrTokenNotFound
}

func (r *stubTokenRepo) activeFor(userID string) []*domain.TokenPair {
	var out []*domain.TokenPair
	for _, p := range r.pairs {
		if p.UserID == userID && !p.IsRevoked {
			out = append(out, p)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Stub primitives
// ---------------------------------------------------------------------------

type issuedToken struct {
	claims    domain.TokenClaims
	expiresAt time.Time
}

// stubSigner hands out opaque sequential tokens and remembers their claims.
type stubSigner struct {
	issued      map[string]issuedToken
	seq         int
	verifyCalls int
}

func newStubSigner() *stubSigner {
	return &stubSigner{issued: make(map[string]issuedToken)}
}

func (s *stubSigner) Sign(c domain.TokenClaims, ttl time.Duration) (string, error) {
	s.seq++
	tok := fmt.Sprintf("tok-%d-%s", s.seq, c.Subject)
	s.issued[tok] = issuedToken{claims: c, expiresAt: time.Now().Add(ttl)}
	return tok, nil
}

func (s *stubSigner) Verify(token string) (*domain.TokenClaims, error) {
	s.verifyCalls++
	it, ok := s.issued[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	if time.Now().After(it.expiresAt) {
		return nil, errors.New("token expired")
	}
	c := it.claims
	return &c, nil
}

type stubLimiter struct {
	failures map[string]int
	max      int
	err      error
}

func newStubLimiter(max int) *stubLimiter {
	return &stubLimiter{failures: make(map[string]int), max: max}
}

func (l *stubLimiter) Allow(_ context.Context, email string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.failures[email] < l.max, nil
}

func (l *stubLimiter) RecordFailure(_ context.Context, email string) error {
	l.failures[email]++
	return l.err
}

func (l *stubLimiter) Reset(_ context.Context, email string) error {
	delete(l.failures, email)
	return l.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var discardLogger = zerolog.Nop()

func testHasher() *BcryptHasher {
	return NewBcryptHasher(4)
}
