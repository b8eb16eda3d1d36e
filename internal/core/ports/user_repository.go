package ports

import (
	"context"

	"github.com/99minutos/user-management/internal/core/domain"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	// Create inserts user. Implementations must enforce email uniqueness and
	// return domain.ErrUserExists on violation.
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByEmail returns domain.ErrUserNotFound when no user has the email.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	// FindAll returns every user in storage order.
	FindAll(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// Delete returns domain.ErrUserNotFound when nothing was deleted.
	Delete(ctx context.Context, id string) error
}
