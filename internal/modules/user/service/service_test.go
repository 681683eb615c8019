package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/user/dto"
	userRepo "anoa.com/schoolportal/internal/modules/user/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/mailer"
	"anoa.com/schoolportal/pkg/password"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUsers struct {
	mu      sync.Mutex
	users   map[uuid.UUID]entity.User
	emails  []entity.EmailNotification
	deleted []uuid.UUID
}

var _ userRepo.UserRepository = (*memUsers)(nil)

func newMemUsers() *memUsers { return &memUsers{users: map[uuid.UUID]entity.User{}} }

func (m *memUsers) add(u entity.User) entity.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *memUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memUsers) FindByIDs(_ context.Context, ids []uuid.UUID) ([]entity.User, error) {
	var out []entity.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memUsers) List(_ context.Context, f userRepo.ListFilter) ([]entity.User, int64, error) {
	var out []entity.User
	for _, u := range m.users {
		if f.Role == "" || u.Role == f.Role {
			out = append(out, u)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memUsers) RoleStats(context.Context) ([]userRepo.RoleCount, error) {
	counts := map[string]int64{}
	for _, u := range m.users {
		counts[u.Role]++
	}
	var out []userRepo.RoleCount
	for role, n := range counts {
		out = append(out, userRepo.RoleCount{Role: role, Total: n})
	}
	return out, nil
}

func (m *memUsers) Activity(context.Context, uuid.UUID) (userRepo.ActivityCounts, error) {
	return userRepo.ActivityCounts{Posts: 2, Comments: 3}, nil
}

func (m *memUsers) CountByRole(_ context.Context, role string) (int64, error) {
	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (m *memUsers) taken(email string, self uuid.UUID) error {
	for id, u := range m.users {
		if id != self && u.Email == email {
			return fmt.Errorf("email %s is already registered: %w", email, apperror.ErrConflict)
		}
	}
	return nil
}

func (m *memUsers) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.taken(u.Email, uuid.Nil); err != nil {
		return err
	}
	u.ID = uuid.New()
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) Update(_ context.Context, u *entity.User, _ ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.taken(u.Email, u.ID); err != nil {
		return err
	}
	m.users[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	m.deleted = append(m.deleted, id)
	delete(m.users, id)
	return nil
}

func (m *memUsers) Approve(_ context.Context, id uuid.UUID) (*entity.User, bool, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, false, fmt.Errorf("account: %w", apperror.ErrNotFound)
	}
	role, err := policy.ParseRole(u.Role, u.IsApproved)
	if err != nil {
		return nil, false, err
	}
	_, changed, err := policy.ApproveAccount(role)
	if err != nil {
		return nil, false, err
	}
	u.IsApproved = true
	m.users[id] = u
	return &u, changed, nil
}

func (m *memUsers) LogEmails(_ context.Context, rows []entity.EmailNotification) error {
	m.emails = append(m.emails, rows...)
	return nil
}

type recordingMailer struct {
	sent []mailer.Message
	fail map[string]bool
}

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	if r.fail[msg.ToEmail] {
		return errors.Join(apperror.ErrDependency, errors.New("smtp down"))
	}
	r.sent = append(r.sent, msg)
	return nil
}

func setup(t *testing.T) (UserService, *memUsers, *recordingMailer, *policy.Actor) {
	t.Helper()
	repo := newMemUsers()
	m := &recordingMailer{fail: map[string]bool{}}
	admin := repo.add(entity.User{Name: "Admin", Email: "admin@school.test", Role: policy.RoleAdmin, IsApproved: true})
	actor, err := admin.Actor()
	require.NoError(t, err)
	return NewUserService(repo, m, "School Portal", nil), repo, m, actor
}

func TestCreate_ApprovedAccountAndWelcomeEmail(t *testing.T) {
	svc, repo, m, admin := setup(t)

	res, err := svc.Create(context.Background(), admin, dto.CreateUserInput{
		Name: "Mr Teacher", Email: "Teacher@School.test", Password: "secret1", Role: policy.RoleTeacher,
	})
	require.NoError(t, err)
	assert.True(t, res.IsApproved)
	assert.Equal(t, "teacher@school.test", res.Email)
	assert.True(t, password.Matches(repo.users[res.ID].PasswordHash, "secret1"))
	require.Len(t, m.sent, 1)
	assert.Equal(t, "Welcome to School Portal", m.sent[0].Subject)

	_, err = svc.Create(context.Background(), admin, dto.CreateUserInput{
		Name: "Dup", Email: "teacher@school.test", Password: "secret1", Role: policy.RoleParent,
	})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestCreate_WelcomeFailureDoesNotFail(t *testing.T) {
	svc, _, m, admin := setup(t)
	m.fail["p@school.test"] = true

	res, err := svc.Create(context.Background(), admin, dto.CreateUserInput{
		Name: "P", Email: "p@school.test", Password: "secret1", Role: policy.RoleParent,
	})
	require.NoError(t, err)
	assert.True(t, res.IsApproved)
}

func TestApproveAccount(t *testing.T) {
	svc, repo, m, admin := setup(t)
	ctx := context.Background()
	pending := repo.add(entity.User{Name: "P", Email: "p@school.test", Role: policy.RoleParent, EmailNotifications: true})
	teacher := repo.add(entity.User{Name: "T", Email: "t@school.test", Role: policy.RoleTeacher, IsApproved: true})

	res, err := svc.ApproveAccount(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.True(t, res.IsApproved)
	assert.Len(t, m.sent, 1)

	// Idempotent and silent the second time.
	_, err = svc.ApproveAccount(ctx, admin, pending.ID)
	require.NoError(t, err)
	assert.Len(t, m.sent, 1)

	_, err = svc.ApproveAccount(ctx, admin, teacher.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.ApproveAccount(ctx, admin, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	parentActor, err := pending.Actor()
	require.NoError(t, err)
	_, err = svc.ApproveAccount(ctx, parentActor, pending.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestDelete_NotSelf(t *testing.T) {
	svc, repo, _, admin := setup(t)
	other := repo.add(entity.User{Name: "T", Email: "t@school.test", Role: policy.RoleTeacher, IsApproved: true})

	assert.ErrorIs(t, svc.Delete(context.Background(), admin, admin.ID), apperror.ErrInvalidInput)
	assert.ErrorIs(t, svc.Delete(context.Background(), admin, uuid.New()), apperror.ErrNotFound)
	require.NoError(t, svc.Delete(context.Background(), admin, other.ID))
	assert.Equal(t, []uuid.UUID{other.ID}, repo.deleted)
}

func TestUpdate_EmailUniqueExcludingSelf(t *testing.T) {
	svc, repo, _, admin := setup(t)
	ctx := context.Background()
	a := repo.add(entity.User{Name: "A", Email: "a@school.test", Role: policy.RoleTeacher, IsApproved: true})
	repo.add(entity.User{Name: "B", Email: "b@school.test", Role: policy.RoleTeacher, IsApproved: true})

	res, err := svc.Update(ctx, admin, a.ID, dto.UpdateUserInput{Name: "A2", Email: "a@school.test", Role: policy.RoleTeacher})
	require.NoError(t, err)
	assert.Equal(t, "A2", res.Name)

	_, err = svc.Update(ctx, admin, a.ID, dto.UpdateUserInput{Name: "A2", Email: "b@school.test", Role: policy.RoleTeacher})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.Update(ctx, admin, a.ID, dto.UpdateUserInput{Name: "A2", Email: "a@school.test", Role: policy.RoleTeacher, Password: "123"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.Update(ctx, admin, admin.ID, dto.UpdateUserInput{Name: "Admin", Email: "admin@school.test", Role: policy.RoleParent})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestBulkEmail_LogsEveryRecipient(t *testing.T) {
	svc, repo, m, admin := setup(t)
	ok := repo.add(entity.User{Name: "Ok", Email: "ok@school.test", Role: policy.RoleParent, IsApproved: true})
	bad := repo.add(entity.User{Name: "Bad", Email: "bad@school.test", Role: policy.RoleParent, IsApproved: true})
	m.fail[bad.Email] = true

	res, err := svc.BulkEmail(context.Background(), admin, dto.BulkEmailInput{
		RecipientIDs: []uuid.UUID{ok.ID, bad.ID, uuid.New()},
		Subject:      "Closing early",
		Message:      "School closes at noon on Friday.",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, repo.emails, 2)
	for _, row := range repo.emails {
		assert.Equal(t, row.RecipientID == ok.ID, row.IsSent)
		assert.Equal(t, admin.ID, row.SenderID)
	}
}

func TestList_StatsAndDetail(t *testing.T) {
	svc, repo, _, admin := setup(t)
	repo.add(entity.User{Name: "P", Email: "p@school.test", Role: policy.RoleParent})

	list, err := svc.List(context.Background(), admin, dto.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Stats[policy.RoleParent])
	assert.Equal(t, int64(0), list.Stats[policy.RoleTeacher])
	assert.Len(t, list.Data, 2)

	detail, err := svc.Get(context.Background(), admin, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.Activity.Comments)
}
