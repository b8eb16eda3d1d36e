package domain

import "time"

// Role is the coarse authorization tier of a user.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User models an identity record. PasswordHash is never the plaintext and is
// never rendered to clients: handlers respond with PublicUser instead.
type User struct {
	ID              string
	Email           string
	PasswordHash    string
	Name            string
	Role            Role
	IsEmailVerified bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PublicUser is the client-facing projection of a User.
type PublicUser struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Role            Role      `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SessionUser is the minimal identity returned alongside a fresh login.
type SessionUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Public returns the projection of u that is safe to serialize.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// Session returns the login projection of u.
func (u *User) Session() SessionUser {
	return SessionUser{ID: u.ID, Email: u.Email, Role: u.Role}
}
