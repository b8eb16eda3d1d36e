package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrForbidden    = errors.New("access forbidden")

	// ErrUnauthorized is the single kind behind every authentication failure.
	// Callers must not be able to tell which check failed.
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidCredentials  = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)

	ErrTokenNotFound   = errors.New("token pair not found")
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)
