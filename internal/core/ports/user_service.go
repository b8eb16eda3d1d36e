package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// CreateUserInput carries the registration fields.
type CreateUserInput struct {
	Email    string
	Password string
	Name     string
}

// UpdateUserInput carries a partial update. Nil fields keep their value.
type UpdateUserInput struct {
	Email    *string
	Password *string
	Name     *string
}

// UserService defines the user directory use cases.
type UserService interface {
	Create(ctx context.Context, input CreateUserInput) (*domain.User, error)
	FindAll(ctx context.Context) ([]*domain.User, error)
	FindOne(ctx context.Context, id string) (*domain.User, error)
	// FindByEmail returns (nil, nil) when no user has the email.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, id string, input UpdateUserInput) (*domain.User, error)
	Remove(ctx context.Context, id string) error
}
