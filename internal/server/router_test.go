package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/schoolportal/internal/config"
	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/middleware"
	authHttp "anoa.com/schoolportal/internal/modules/auth/delivery/http"
	"anoa.com/schoolportal/internal/modules/auth/dto"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubUsers map[uuid.UUID]*entity.User

func (s stubUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	return s[id], nil
}

type stubAuth struct{}

func (stubAuth) Register(context.Context, dto.RegisterInput) (*entity.User, error) {
	return nil, errors.New("not used")
}

func (stubAuth) Login(context.Context, dto.LoginInput) (*entity.User, error) {
	return nil, errors.New("not used")
}

func (stubAuth) Me(context.Context, *policy.Actor) (*entity.User, error) {
	return nil, errors.New("not used")
}

func (stubAuth) PendingNotice(_ context.Context, actor *policy.Actor) (*dto.PendingNotice, error) {
	if err := policy.Authorize(actor, policy.ActionPendingNotice, nil); err != nil {
		return nil, err
	}
	if policy.IsApproved(actor) {
		return nil, apperror.ErrForbidden
	}
	return &dto.PendingNotice{Message: "waiting"}, nil
}

type fixture struct {
	router   *gin.Engine
	sessions *middleware.Sessions
	users    stubUsers
	healthy  error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		sessions: middleware.NewSessions("test-secret", time.Hour, "portal_session", false),
		users:    stubUsers{},
	}
	handlers := Handlers{Auth: authHttp.NewAuthHandler(stubAuth{}, f.sessions)}
	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:3000"}}
	health := func(context.Context) error { return f.healthy }

	router, err := NewRouter(cfg, handlers, middleware.NewAuthMiddleware(f.users, f.sessions), health, zap.NewNop())
	require.NoError(t, err)
	f.router = router
	return f
}

func (f *fixture) user(t *testing.T, role string, approved bool) string {
	t.Helper()
	u := &entity.User{ID: uuid.New(), Name: role, Email: role + "@school.test", Role: role, IsApproved: approved}
	f.users[u.ID] = u
	token, err := f.sessions.Issue(u.ID)
	require.NoError(t, err)
	return token
}

func (f *fixture) do(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	f.healthy = errors.New("connection refused")
	w = f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestRouter_AnonymousNeedsLogin(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/auth/me", "/api/messages/conversations", "/api/admin/users", "/api/my-children"} {
		w := f.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestRouter_PendingParentRedirected(t *testing.T) {
	f := newFixture(t)
	token := f.user(t, policy.RoleParent, false)

	for _, path := range []string{"/api/messages/conversations", "/api/my-children"} {
		w := f.do(http.MethodGet, path, token)
		assert.Equal(t, http.StatusSeeOther, w.Code, path)
		assert.Equal(t, response.PendingApprovalPath, w.Header().Get("Location"), path)
	}

	w := f.do(http.MethodGet, "/api/auth/pending-approval", token)
	require.Equal(t, http.StatusOK, w.Code)
	var notice dto.PendingNotice
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &notice))
	assert.Equal(t, "waiting", notice.Message)
}

func TestRouter_RoleGates(t *testing.T) {
	f := newFixture(t)
	teacher := f.user(t, policy.RoleTeacher, true)

	for _, path := range []string{"/api/admin/users", "/api/admin/students", "/api/admin/notifications"} {
		w := f.do(http.MethodGet, path, teacher)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
	}

	// Teachers are not parents: the pending notice sends them home.
	w := f.do(http.MethodGet, "/api/auth/pending-approval", teacher)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, authHttp.HomePath, w.Header().Get("Location"))

	approvedParent := f.user(t, policy.RoleParent, true)
	w = f.do(http.MethodGet, "/api/contact-messages", approvedParent)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
