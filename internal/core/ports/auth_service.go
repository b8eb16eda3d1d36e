package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         domain.SessionUser
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	RefreshToken(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, userID string) (string, error)
}
