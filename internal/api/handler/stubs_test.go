package handler

import (
	"context"
	"net/http/httptest"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/user-management/internal/api/middleware"
	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/ports"
)

// --- stubs ---

type stubAuthService struct {
	loginFn   func(ctx context.Context, email, password string) (*ports.LoginResult, error)
	refreshFn func(ctx context.Context, refreshToken string) (string, error)
	logoutFn  func(ctx context.Context, userID string) (string, error)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.LoginResult, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	return s.refreshFn(ctx, refreshToken)
}

func (s *stubAuthService) Logout(ctx context.Context, userID string) (string, error) {
	return s.logoutFn(ctx, userID)
}

type stubUserService struct {
	createFn  func(ctx context.Context, input ports.CreateUserInput) (*domain.User, error)
	findAllFn func(ctx context.Context) ([]*domain.User, error)
	findOneFn func(ctx context.Context, id string) (*domain.User, error)
	updateFn  func(ctx context.Context, id string, input ports.UpdateUserInput) (*domain.User, error)
	removeFn  func(ctx context.Context, id string) error
}

func (s *stubUserService) Create(ctx context.Context, input ports.CreateUserInput) (*domain.User, error) {
	return s.createFn(ctx, input)
}

func (s *stubUserService) FindAll(ctx context.Context) ([]*domain.User, error) {
	return s.findAllFn(ctx)
}

func (s *stubUserService) FindOne(ctx context.Context, id string) (*domain.User, error) {
	return s.findOneFn(ctx, id)
}

func (s *stubUserService) FindByEmail(context.Context, string) (*domain.User, error) {
	return nil, nil
}

func (s *stubUserService) Update(ctx context.Context, id string, input ports.UpdateUserInput) (*domain.User, error) {
	return s.updateFn(ctx, id, input)
}

func (s *stubUserService) Remove(ctx context.Context, id string) error {
	return s.removeFn(ctx, id)
}

// --- helpers ---

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// newJSONContext builds a request context. A non-empty userID simulates
// middleware.Auth having accepted an access token.
func newJSONContext(e *echo.Echo, method, path, body, userID string, role domain.Role) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextRole, string(role))
	}
	return c, rec
}

func httpCode(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}
