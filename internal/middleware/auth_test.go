package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[uuid.UUID]*entity.User

func (s stubUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	return s[id], nil
}

func newTestRouter(users stubUsers, sessions *Sessions, action policy.Action) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	auth := NewAuthMiddleware(users, sessions)
	r.Use(auth.Identify())
	r.GET("/open", func(c *gin.Context) {
		if a := ActorFrom(c); a != nil {
			c.String(http.StatusOK, a.RoleName())
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/gated", auth.RequireAuth(), Require(action), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestSessions_IssueAndParse(t *testing.T) {
	s := NewSessions("secret", time.Hour, "portal_session", false)
	id := uuid.New()

	token, err := s.Issue(id)
	require.NoError(t, err)

	got, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = NewSessions("other", time.Hour, "portal_session", false).Parse(token)
	assert.Error(t, err)
}

func TestSessions_ExpiredTokenRejected(t *testing.T) {
	s := NewSessions("secret", -time.Minute, "portal_session", false)
	token, err := s.Issue(uuid.New())
	require.NoError(t, err)

	_, err = s.Parse(token)
	assert.Error(t, err)
}

func TestIdentify_CookieAndBearer(t *testing.T) {
	sessions := NewSessions("secret", time.Hour, "portal_session", false)
	teacher := &entity.User{ID: uuid.New(), Name: "T", Role: policy.RoleTeacher, IsApproved: true}
	router := newTestRouter(stubUsers{teacher.ID: teacher}, sessions, policy.ActionMessage)
	token, err := sessions.Issue(teacher.ID)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.AddCookie(&http.Cookie{Name: "portal_session", Value: token})
	router.ServeHTTP(w, req)
	assert.Equal(t, "teacher", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)
	assert.Equal(t, "teacher", w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/open", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	router.ServeHTTP(w, req)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestRequire_Decisions(t *testing.T) {
	sessions := NewSessions("secret", time.Hour, "portal_session", false)
	pending := &entity.User{ID: uuid.New(), Name: "P", Role: policy.RoleParent, IsApproved: false}
	users := stubUsers{pending.ID: pending}
	token, err := sessions.Issue(pending.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		action policy.Action
		token  string
		status int
	}{
		{"anonymous", policy.ActionMessage, "", http.StatusUnauthorized},
		{"pending parent redirected", policy.ActionMessage, token, http.StatusSeeOther},
		{"pending parent denied admin route", policy.ActionManageStudents, token, http.StatusForbidden},
		{"pending parent may submit child", policy.ActionSubmitGuardianLink, token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(users, sessions, tt.action)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/gated", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusSeeOther {
				assert.Equal(t, "/api/auth/pending-approval", w.Header().Get("Location"))
			}
		})
	}
}
