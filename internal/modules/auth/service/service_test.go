package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/auth/dto"
	userRepo "anoa.com/schoolportal/internal/modules/user/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/password"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUsers embeds the interface so tests only implement what auth uses.
type fakeUsers struct {
	userRepo.UserRepository
	byEmail map[string]entity.User
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Create(_ context.Context, u *entity.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return apperror.ErrConflict
	}
	u.ID = uuid.New()
	f.byEmail[u.Email] = *u
	return nil
}

type fakeChildren struct{ n int }

func (f fakeChildren) ListByParent(context.Context, uuid.UUID, bool) ([]entity.Student, error) {
	return make([]entity.Student, f.n), nil
}

type onceLimiter struct{ used map[string]bool }

func (l *onceLimiter) Allow(_ context.Context, action, subject string, window time.Duration) error {
	if l.used[subject] {
		return &ratelimiter.RateLimitError{Message: "wait", RetryAfter: window}
	}
	l.used[subject] = true
	return nil
}

func newService() (AuthService, *fakeUsers, *onceLimiter) {
	users := &fakeUsers{byEmail: map[string]entity.User{}}
	limiter := &onceLimiter{used: map[string]bool{}}
	return NewAuthService(users, fakeChildren{n: 2}, limiter, time.Second, nil), users, limiter
}

func TestRegister_CreatesPendingParent(t *testing.T) {
	svc, users, _ := newService()

	user, err := svc.Register(context.Background(), dto.RegisterInput{
		Name: " Mama Neema ", Email: "Neema@Example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, policy.RoleParent, user.Role)
	assert.False(t, user.IsApproved)
	assert.True(t, user.IsPendingParent())
	assert.Equal(t, "Mama Neema", user.Name)
	assert.Contains(t, users.byEmail, "neema@example.com")

	_, err = svc.Register(context.Background(), dto.RegisterInput{
		Name: "x", Email: "neema@example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.Register(context.Background(), dto.RegisterInput{
		Name: "x", Email: "other@example.com", Password: "secret1", ConfirmPassword: "secret2",
	})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	svc, users, limiter := newService()
	hash, err := password.Hash("secret1")
	require.NoError(t, err)
	users.byEmail["t@example.com"] = entity.User{ID: uuid.New(), Email: "t@example.com", PasswordHash: hash, Role: policy.RoleTeacher, IsApproved: true}

	user, err := svc.Login(context.Background(), dto.LoginInput{Email: "T@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "t@example.com", user.Email)

	limiter.used = map[string]bool{}
	_, err = svc.Login(context.Background(), dto.LoginInput{Email: "t@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	_, err = svc.Login(context.Background(), dto.LoginInput{Email: "t@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	_, err = svc.Login(context.Background(), dto.LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestPendingNotice(t *testing.T) {
	svc, _, _ := newService()
	pending, err := policy.NewActor(uuid.New(), "P", policy.RoleParent, false)
	require.NoError(t, err)
	approved, err := policy.NewActor(uuid.New(), "P", policy.RoleParent, true)
	require.NoError(t, err)

	notice, err := svc.PendingNotice(context.Background(), pending)
	require.NoError(t, err)
	assert.Equal(t, 2, notice.Children)

	_, err = svc.PendingNotice(context.Background(), approved)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = svc.PendingNotice(context.Background(), nil)
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
