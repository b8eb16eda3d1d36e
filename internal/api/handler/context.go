package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/api/middleware"
	"github.com/99minutos/user-management/internal/core/domain"
)

// caller is the authenticated identity placed in context by middleware.Auth.
type caller struct {
	ID   string
	Role domain.Role
}

func callerFrom(c echo.Context) caller {
	id, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	return caller{ID: id, Role: domain.Role(role)}
}

func (c caller) isAdmin() bool {
	return c.Role == domain.RoleAdmin
}

// canRead reports whether the caller may read the user with the given id.
func (c caller) canRead(id string) bool {
	return c.ID == id || c.isAdmin()
}

// canModify reports whether the caller may update or delete the user with the
// given id. Admins get no exemption.
func (c caller) canModify(id string) bool {
	return c.ID != "" && c.ID == id
}
