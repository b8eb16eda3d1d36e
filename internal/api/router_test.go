package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/99minutos/user-management/internal/api/handler"
	"github.com/99minutos/user-management/internal/core/domain"
	"github.com/99minutos/user-management/internal/core/service"
	"github.com/99minutos/user-management/internal/infrastructure/db/sqldb"
	"github.com/99minutos/user-management/internal/infrastructure/token"
)

// --- test server ---

type testServer struct {
	e      *echo.Echo
	store  *sqldb.Store
	hasher *service.BcryptHasher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqldb.Open(context.Background(), sqldb.Config{Driver: sqldb.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	log := zerolog.Nop()
	hasher := service.NewBcryptHasher(4)
	signer := token.NewJWTSigner("test-secret")
	users := service.NewUserService(store.Users(), hasher, log)
	auth := service.NewAuthService(users, store.Tokens(), hasher, signer, nil, log)

	e := NewRouter(Dependencies{
		Users:    users,
		Auth:     auth,
		Signer:   signer,
		Checks:   []handler.DependencyCheck{{Name: "sqlite", Ping: store.Ping}},
		Logger:   log,
		Registry: prometheus.NewRegistry(),
	})
	return &testServer{e: e, store: store, hasher: hasher}
}

func (s *testServer) do(t *testing.T, method, path, body, bearer string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) && strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("invalid json %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func (s *testServer) register(t *testing.T, email, name string) string {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/api/v1/users", `{"email":"`+email+`","password":"Test123!@","name":"`+name+`"}`, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d %s", email, rec.Code, rec.Body.String())
	}
	return body["id"].(string)
}

func (s *testServer) login(t *testing.T, email string) (access, refresh string) {
	t.Helper()
	rec, body := s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"`+email+`","password":"Test123!@"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d %s", email, rec.Code, rec.Body.String())
	}
	return body["accessToken"].(string), body["refreshToken"].(string)
}

func (s *testServer) seedAdmin(t *testing.T) string {
	t.Helper()
	hash, err := s.hasher.Hash("Test123!@")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC()
	admin := &domain.User{
		ID:           "admin-1",
		Email:        "root@x.com",
		PasswordHash: hash,
		Name:         "Root",
		Role:         domain.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Users().Create(context.Background(), admin); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin.ID
}

// --- tests ---

func TestRouter_SessionLifecycle(t *testing.T) {
	s := newTestServer(t)

	id := s.register(t, "a@x.com", "Kim")

	rec, body := s.do(t, http.MethodPost, "/api/v1/users", `{"email":"a@x.com","password":"Test123!@","name":"Kim"}`, "")
	if rec.Code != http.StatusConflict || body["error"] != "user already exists" {
		t.Fatalf("expected 409, got %d %s", rec.Code, rec.Body.String())
	}

	rec, body = s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Test123!@"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}
	user := body["user"].(map[string]any)
	if user["id"] != id || user["email"] != "a@x.com" || user["role"] != "user" {
		t.Fatalf("unexpected session user: %+v", user)
	}
	access := body["accessToken"].(string)
	refresh := body["refreshToken"].(string)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", `{"email":"a@x.com","password":"Wrong123!"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}

	rec, body = s.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	if rec.Code != http.StatusOK || body["accessToken"] == "" {
		t.Fatalf("refresh: expected 200, got %d %s", rec.Code, rec.Body.String())
	}
	refreshed := body["accessToken"].(string)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/users/"+id, "", refreshed)
	if rec.Code != http.StatusOK {
		t.Fatalf("refreshed access token should authenticate, got %d", rec.Code)
	}

	rec, body = s.do(t, http.MethodPost, "/api/v1/auth/logout", "", access)
	if rec.Code != http.StatusOK || body["message"] != service.LogoutMessage {
		t.Fatalf("logout: expected 200, got %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+refresh+`"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", rec.Code)
	}
}

func TestRouter_LoginRevokesPreviousSession(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "Kim")

	_, firstRefresh := s.login(t, "a@x.com")
	_, secondRefresh := s.login(t, "a@x.com")

	rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+firstRefresh+`"}`, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("first session should be revoked, got %d", rec.Code)
	}
	rec, _ = s.do(t, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+secondRefresh+`"}`, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("second session should be active, got %d", rec.Code)
	}
}

func TestRouter_RefreshRejectsEmptyAndForged(t *testing.T) {
	s := newTestServer(t)

	for _, body := range []string{`{}`, `{"refreshToken":""}`, `{"refreshToken":"forged"}`} {
		rec, _ := s.do(t, http.MethodPost, "/api/v1/auth/refresh", body, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("body %s: expected 401, got %d", body, rec.Code)
		}
	}
}

func TestRouter_RefreshTokenIsNotAnAccessToken(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "a@x.com", "Kim")
	_, refresh := s.login(t, "a@x.com")

	rec, _ := s.do(t, http.MethodGet, "/api/v1/users/"+id, "", refresh)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_UserAccessRules(t *testing.T) {
	s := newTestServer(t)
	aID := s.register(t, "a@x.com", "Kim")
	bID := s.register(t, "b@x.com", "Lee")
	s.seedAdmin(t)

	aAccess, _ := s.login(t, "a@x.com")
	adminAccess, _ := s.login(t, "root@x.com")

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		bearer   string
		wantCode int
	}{
		{name: "list without token", method: http.MethodGet, path: "/api/v1/users", wantCode: http.StatusUnauthorized},
		{name: "list as user", method: http.MethodGet, path: "/api/v1/users", bearer: aAccess, wantCode: http.StatusForbidden},
		{name: "list as admin", method: http.MethodGet, path: "/api/v1/users", bearer: adminAccess, wantCode: http.StatusOK},
		{name: "read self", method: http.MethodGet, path: "/api/v1/users/" + aID, bearer: aAccess, wantCode: http.StatusOK},
		{name: "read other", method: http.MethodGet, path: "/api/v1/users/" + bID, bearer: aAccess, wantCode: http.StatusForbidden},
		{name: "admin reads other", method: http.MethodGet, path: "/api/v1/users/" + bID, bearer: adminAccess, wantCode: http.StatusOK},
		{name: "admin reads missing", method: http.MethodGet, path: "/api/v1/users/missing", bearer: adminAccess, wantCode: http.StatusNotFound},
		{name: "update other", method: http.MethodPut, path: "/api/v1/users/" + bID, body: `{"name":"X"}`, bearer: aAccess, wantCode: http.StatusForbidden},
		{name: "admin updates other", method: http.MethodPut, path: "/api/v1/users/" + bID, body: `{"name":"X"}`, bearer: adminAccess, wantCode: http.StatusForbidden},
		{name: "update email taken", method: http.MethodPut, path: "/api/v1/users/" + aID, body: `{"email":"b@x.com"}`, bearer: aAccess, wantCode: http.StatusConflict},
		{name: "update weak password", method: http.MethodPut, path: "/api/v1/users/" + aID, body: `{"password":"weakpassword"}`, bearer: aAccess, wantCode: http.StatusBadRequest},
		{name: "update self", method: http.MethodPut, path: "/api/v1/users/" + aID, body: `{"name":"X"}`, bearer: aAccess, wantCode: http.StatusOK},
		{name: "delete other", method: http.MethodDelete, path: "/api/v1/users/" + bID, bearer: aAccess, wantCode: http.StatusForbidden},
		{name: "delete self", method: http.MethodDelete, path: "/api/v1/users/" + aID, bearer: aAccess, wantCode: http.StatusNoContent},
	}
	// Cases run in order: the last one removes the caller.
	for _, tt := range tests {
		rec, _ := s.do(t, tt.method, tt.path, tt.body, tt.bearer)
		if rec.Code != tt.wantCode {
			t.Fatalf("%s: expected %d, got %d %s", tt.name, tt.wantCode, rec.Code, rec.Body.String())
		}
	}

	rec, _ := s.do(t, http.MethodGet, "/api/v1/users/"+aID, "", adminAccess)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted user should be gone, got %d", rec.Code)
	}
}

func TestRouter_ListOmitsPasswordHash(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "Kim")
	s.seedAdmin(t)
	adminAccess, _ := s.login(t, "root@x.com")

	rec, _ := s.do(t, http.MethodGet, "/api/v1/users", "", adminAccess)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "$2a$") || strings.Contains(strings.ToLower(rec.Body.String()), "password") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	var users []domain.PublicUser
	if err := json.Unmarshal(rec.Body.Bytes(), &users); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("liveness: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = s.do(t, http.MethodGet, "/health/ready", "", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("readiness: %d %s", rec.Code, rec.Body.String())
	}

	s.do(t, http.MethodGet, "/health", "", "")
	rec, _ = s.do(t, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Fatalf("expected request metrics, got %s", rec.Body.String())
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/v1/nope", "", "")
	if rec.Code != http.StatusNotFound || body["error"] == nil {
		t.Fatalf("expected 404 envelope, got %d %s", rec.Code, rec.Body.String())
	}
}
