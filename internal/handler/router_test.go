package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhub/backend/internal/config"
	"github.com/taskhub/backend/internal/db"
	"github.com/taskhub/backend/internal/model"
	"github.com/taskhub/backend/internal/service"
)

type testServer struct {
	router http.Handler
	store  *db.Store
}

func newTestServer(t *testing.T, limiter *RateLimiter, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{Database: config.DatabaseConfig{
		Driver:     db.DialectSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "tasks.db"),
	}}
	store, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	authService, err := service.NewAuthService(store, service.NewRevocationList(store), config.AuthConfig{JWTSecret: "handler-secret"})
	require.NoError(t, err)

	routerCfg := RouterConfig{
		Auth:           authService,
		Users:          service.NewUserService(store, authService),
		Projects:       service.NewProjectService(store),
		Tasks:          service.NewTaskService(store),
		DB:             store,
		AuthLimiter:    limiter,
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	for _, opt := range opts {
		opt(&routerCfg)
	}
	router, err := NewRouter(routerCfg)
	require.NoError(t, err)
	return &testServer{router: router, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[model.ErrorResponse](t, w).Error
}

func (s *testServer) register(t *testing.T, username string) model.AuthResponse {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/register", "", model.RegisterRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[model.AuthResponse](t, w)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", decode[model.PingResponse](t, w).Message)

	w = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[model.HealthResponse](t, w).Status)

	w = s.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/openapi.json", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/tasks/count")

	w = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", errorMessage(t, w))
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthReportsDatabaseFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", Health(failingPinger{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t, nil)

	reg := s.register(t, "alice")
	assert.NotZero(t, reg.ID)
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "alice@example.com", reg.Email)

	w := s.do(t, http.MethodGet, "/api/auth/me", reg.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := decode[model.AuthMeResponse](t, w)
	assert.Equal(t, reg.ID, me.UserID)
	assert.Equal(t, "alice", me.Username)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "alice@example.com", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	login := decode[model.AuthResponse](t, w)
	assert.Equal(t, reg.ID, login.ID)
	assert.NotEqual(t, reg.Token, login.Token)
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/auth/register", "", model.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/register", "", model.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "sixsix"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/register", "", model.RegisterRequest{Username: "bob", Email: "other@example.com", Password: "sixsix"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "username already exists", errorMessage(t, w))

	w = s.do(t, http.MethodPost, "/api/auth/register", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConcurrentRegisterReturnsOneCreated(t *testing.T) {
	s := newTestServer(t, nil)

	const attempts = 3
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, _ := json.Marshal(model.RegisterRequest{Username: "dup", Email: "dup@example.com", Password: "secret1"})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 1, created)
}

func TestLoginErrorsAreUniform(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "alice")

	wrong := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "alice", Password: "nope-nope"})
	unknown := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "mallory", Password: "secret1"})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "invalid credentials", errorMessage(t, wrong))

	w := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthenticationFailures(t *testing.T) {
	s := newTestServer(t, nil)
	reg := s.register(t, "alice")

	w := s.do(t, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "access token missing", errorMessage(t, w))

	w = s.do(t, http.MethodGet, "/api/tasks", "forged.token.value", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access token invalid", errorMessage(t, w))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Basic "+reg.Token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "bearer "+reg.Token)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newTestServer(t, nil)
	reg := s.register(t, "alice")

	w := s.do(t, http.MethodPost, "/api/auth/logout", reg.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/tasks", reg.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access token revoked", errorMessage(t, w))

	// Logout is idempotent and accepts anything.
	for _, token := range []string{reg.Token, "", "garbage"} {
		w = s.do(t, http.MethodPost, "/api/auth/logout", token, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCrossUserAccessIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	w := s.do(t, http.MethodPost, "/api/projects", alice.Token, model.ProjectRequest{Name: "alice's"})
	require.Equal(t, http.StatusCreated, w.Code)
	project := decode[model.Project](t, w)

	w = s.do(t, http.MethodPost, "/api/tasks", alice.Token, map[string]any{
		"title":      "private",
		"project_id": project.ID,
		"user_id":    bob.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	task := decode[model.Task](t, w)
	assert.Equal(t, alice.ID, task.UserID)

	for _, path := range []string{"/api/tasks/", "/api/projects/"} {
		id := task.ID
		if path == "/api/projects/" {
			id = project.ID
		}
		url := path + itoa(id)

		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, url, bob.Token, nil).Code, url)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPut, url, bob.Token, map[string]any{"title": "x", "name": "x"}).Code, url)
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, url, bob.Token, nil).Code, url)
		assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, url, alice.Token, nil).Code, url)
	}

	w = s.do(t, http.MethodPost, "/api/tasks", bob.Token, map[string]any{"title": "hijack", "project_id": project.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid project_id", errorMessage(t, w))

	w = s.do(t, http.MethodGet, "/api/tasks", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.Task](t, w))

	for _, id := range []string{"abc", "0", "-3"} {
		w = s.do(t, http.MethodGet, "/api/tasks/"+id, alice.Token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, id)
	}
}

func TestTaskFiltersAndCount(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")

	for _, body := range []map[string]any{
		{"title": "Write report", "priority": "high"},
		{"title": "Review", "description": "quarterly REPORT", "status": "completed"},
		{"title": "Lunch", "priority": "low"},
	} {
		w := s.do(t, http.MethodPost, "/api/tasks", alice.Token, body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(t, http.MethodGet, "/api/tasks?search=report", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]model.Task](t, w), 2)

	w = s.do(t, http.MethodGet, "/api/tasks/count?status=completed", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[model.CountResponse](t, w).Count)

	w = s.do(t, http.MethodGet, "/api/tasks/count?status=all&priority=all&project_id=all", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(3), decode[model.CountResponse](t, w).Count)

	w = s.do(t, http.MethodGet, "/api/tasks?start_date=yesterday", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskUpdateCompletes(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")

	w := s.do(t, http.MethodPost, "/api/tasks", alice.Token, map[string]any{"title": "ship"})
	require.Equal(t, http.StatusCreated, w.Code)
	task := decode[model.Task](t, w)
	assert.Equal(t, model.TaskStatusPending, task.Status)

	w = s.do(t, http.MethodPut, "/api/tasks/"+itoa(task.ID), alice.Token, map[string]any{"title": "ship", "status": "completed", "due_date": "2024-05-01"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[model.Task](t, w)
	assert.NotNil(t, updated.CompletedAt)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, "2024-05-01", *updated.DueDate)

	w = s.do(t, http.MethodDelete, "/api/tasks/"+itoa(task.ID), alice.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/tasks/"+itoa(task.ID), alice.Token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "task not found", errorMessage(t, w))
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")
	s.register(t, "bob")

	w := s.do(t, http.MethodGet, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	assert.Equal(t, "alice", decode[model.UserView](t, w).Username)

	w = s.do(t, http.MethodPut, "/api/users/me", alice.Token, model.UpdateProfileRequest{Username: "bob", Email: "alice@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, "/api/users/me", alice.Token, model.UpdateProfileRequest{Username: "alicia", Email: "alicia@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[model.ProfileResponse](t, w)
	assert.Equal(t, "alicia", profile.Username)
	require.NotEmpty(t, profile.Token)

	w = s.do(t, http.MethodGet, "/api/auth/me", profile.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alicia", decode[model.AuthMeResponse](t, w).Username)

	w = s.do(t, http.MethodPut, "/api/users/me/password", alice.Token, model.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "newsecret"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, "/api/users/me/password", alice.Token, model.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "newsecret"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "alicia", Password: "newsecret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/users/me", alice.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "access token revoked", errorMessage(t, w))
}

func TestDeleteAccountRevokesEverySession(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")

	w := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "alice", Password: "secret1"})
	require.Equal(t, http.StatusOK, w.Code)
	second := decode[model.AuthResponse](t, w).Token

	w = s.do(t, http.MethodDelete, "/api/users/me", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	requests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/auth/me", nil},
		{http.MethodPost, "/api/projects", model.ProjectRequest{Name: "late"}},
		{http.MethodPost, "/api/tasks", model.TaskRequest{Title: "late"}},
	}
	for _, r := range requests {
		w = s.do(t, r.method, r.path, second, r.body)
		assert.Equal(t, http.StatusForbidden, w.Code, r.path)
		assert.Equal(t, "access token revoked", errorMessage(t, w), r.path)
	}

	w = s.do(t, http.MethodGet, "/api/auth/me", bob.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.register(t, "alice")

	tests := []struct {
		name string
		path string
		body any
		want string
	}{
		{"task-title", "/api/tasks", map[string]any{"description": "no title"}, "title is required"},
		{"task-status", "/api/tasks", map[string]any{"title": "t", "status": "done"}, "status must be one of: pending, in_progress, completed"},
		{"task-priority", "/api/tasks", map[string]any{"title": "t", "priority": "urgent"}, "priority must be one of: low, medium, high"},
		{"project-name", "/api/projects", map[string]any{"status": "active"}, "name is required"},
		{"project-status", "/api/projects", map[string]any{"name": "p", "status": "paused"}, "status must be one of: active, completed, archived"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, alice.Token, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, errorMessage(t, w))
		})
	}

	w := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{"username": "bob", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email is required", errorMessage(t, w))

	w = s.do(t, http.MethodGet, "/api/tasks", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]model.Task](t, w))
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, NewRateLimiter(0.001, 2))

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "x", Password: "y"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/auth/login", "", model.LoginRequest{Username: "x", Password: "y"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate limit exceeded", errorMessage(t, w))

	// Other routes are not limited.
	w = s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func (s *testServer) loginFrom(t *testing.T, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(model.LoginRequest{Username: "x", Password: "y"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestAuthRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	s := newTestServer(t, NewRateLimiter(0.001, 1))

	limited := 0
	for i := 0; i < 20; i++ {
		w := s.loginFrom(t, "203.0.113."+strconv.Itoa(i+1))
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 19, limited)
}

func TestAuthRateLimitHonorsTrustedProxy(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	s := newTestServer(t, NewRateLimiter(0.001, 1), func(cfg *RouterConfig) {
		cfg.TrustedProxies = []string{"192.0.2.1"}
	})

	assert.Equal(t, http.StatusUnauthorized, s.loginFrom(t, "203.0.113.1").Code)
	assert.Equal(t, http.StatusUnauthorized, s.loginFrom(t, "203.0.113.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, s.loginFrom(t, "203.0.113.1").Code)
}

func TestNewRouterRejectsBadTrustedProxy(t *testing.T) {
	_, err := NewRouter(RouterConfig{TrustedProxies: []string{"not-an-ip"}})
	assert.Error(t, err)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/tasks", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
