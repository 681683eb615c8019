package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/comment/dto"
	commentRepo "anoa.com/schoolportal/internal/modules/comment/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memComments struct {
	mu      sync.Mutex
	items   []entity.Comment
	deleted []uuid.UUID
	clock   time.Time
}

var _ commentRepo.CommentRepository = (*memComments)(nil)

func (m *memComments) ListByPost(_ context.Context, postID uuid.UUID) ([]entity.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Comment
	for _, c := range m.items {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memComments) FindByID(_ context.Context, id uuid.UUID) (*entity.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.items {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memComments) Create(_ context.Context, c *entity.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	m.clock = m.clock.Add(time.Minute)
	c.CreatedAt = m.clock
	m.items = append(m.items, *c)
	return nil
}

func (m *memComments) UpdateContent(_ context.Context, id uuid.UUID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Content = content
		}
	}
	return nil
}

func (m *memComments) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

type stubAccess struct {
	posts map[uuid.UUID]entity.Post
}

func (s *stubAccess) Access(_ context.Context, actor *policy.Actor, action policy.Action, id uuid.UUID) (*entity.Post, error) {
	p, ok := s.posts[id]
	if !ok {
		return nil, policy.Authorize(actor, action, policy.NotFound())
	}
	if err := policy.Authorize(actor, action, policy.OfAnnouncement(p.View(), policy.Audience{})); err != nil {
		return nil, err
	}
	return &p, nil
}

func newActor(t *testing.T, role string) *policy.Actor {
	t.Helper()
	a, err := policy.NewActor(uuid.New(), "x", role, true)
	require.NoError(t, err)
	return a
}

func setup() (CommentService, *memComments, entity.Post, entity.Post) {
	open := entity.Post{ID: uuid.New(), Visibility: "all"}
	staff := entity.Post{ID: uuid.New(), Visibility: "teachers"}
	repo := &memComments{}
	access := &stubAccess{posts: map[uuid.UUID]entity.Post{open.ID: open, staff.ID: staff}}
	return NewCommentService(repo, access), repo, open, staff
}

func TestCreate_TrimsAndThreads(t *testing.T) {
	svc, _, p, _ := setup()
	parent := newActor(t, policy.RoleParent)
	ctx := context.Background()

	top, err := svc.Create(ctx, parent, p.ID, dto.CreateCommentInput{Content: "  Thanks!  "})
	require.NoError(t, err)
	assert.Equal(t, "Thanks!", top.Content)

	reply, err := svc.Create(ctx, parent, p.ID, dto.CreateCommentInput{Content: "reply", ParentID: &top.ID})
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, top.ID, *reply.ParentID)

	nested, err := svc.Create(ctx, parent, p.ID, dto.CreateCommentInput{Content: "deeper", ParentID: &reply.ID})
	require.NoError(t, err)
	assert.Equal(t, top.ID, *nested.ParentID)

	list, err := svc.List(ctx, parent, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Replies, 2)
}

func TestCreate_Rejections(t *testing.T) {
	svc, _, p, staff := setup()
	parent := newActor(t, policy.RoleParent)
	ctx := context.Background()

	_, err := svc.Create(ctx, parent, p.ID, dto.CreateCommentInput{Content: "<b></b>  "})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.Create(ctx, parent, staff.ID, dto.CreateCommentInput{Content: "hi"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	foreign := uuid.New()
	_, err = svc.Create(ctx, parent, p.ID, dto.CreateCommentInput{Content: "hi", ParentID: &foreign})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.Create(ctx, nil, p.ID, dto.CreateCommentInput{Content: "hi"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestModify_NotFoundThenOwnership(t *testing.T) {
	svc, repo, p, _ := setup()
	author := newActor(t, policy.RoleParent)
	stranger := newActor(t, policy.RoleParent)
	admin := newActor(t, policy.RoleAdmin)
	ctx := context.Background()

	c, err := svc.Create(ctx, author, p.ID, dto.CreateCommentInput{Content: "mine"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, stranger, uuid.New(), dto.UpdateCommentInput{Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Update(ctx, stranger, c.ID, dto.UpdateCommentInput{Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	updated, err := svc.Update(ctx, author, c.ID, dto.UpdateCommentInput{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	assert.ErrorIs(t, svc.Delete(ctx, stranger, c.ID), apperror.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, c.ID))
	assert.Equal(t, []uuid.UUID{c.ID}, repo.deleted)
}
