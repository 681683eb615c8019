package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"anoa.com/schoolportal/internal/entity"
	annRepo "anoa.com/schoolportal/internal/modules/announcement/repository"
	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
)

type memAnnouncements struct {
	mu        sync.RWMutex
	posts     map[uuid.UUID]entity.Post
	reactions []entity.Reaction
	listCalls int
	listErr   error
}

var _ annRepo.AnnouncementRepository = (*memAnnouncements)(nil)

func newMemAnnouncements(posts ...entity.Post) *memAnnouncements {
	m := &memAnnouncements{posts: map[uuid.UUID]entity.Post{}}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *memAnnouncements) ListVisible(_ context.Context, scope policy.Scope, f annRepo.ListFilter) ([]entity.Post, int64, error) {
	m.mu.Lock()
	m.listCalls++
	m.mu.Unlock()
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []entity.Post
	for _, p := range m.posts {
		if !scope.Matches(p.View()) {
			continue
		}
		if f.Category != "" && f.Category != "all" && p.Category != f.Category {
			continue
		}
		if s := strings.ToLower(f.Search); s != "" &&
			!strings.Contains(strings.ToLower(p.Title), s) && !strings.Contains(strings.ToLower(p.Content), s) {
			continue
		}
		if f.IDs != nil && !slices.Contains(f.IDs, p.ID) {
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b entity.Post) int { return policy.FeedLess(a.View(), b.View()) })
	total := int64(len(out))
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return []entity.Post{}, total, nil
		}
		out = out[f.Offset:]
		if len(out) > f.Limit {
			out = out[:f.Limit]
		}
	}
	return out, total, nil
}

func (m *memAnnouncements) FindByID(_ context.Context, id uuid.UUID) (*entity.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memAnnouncements) FindAll(_ context.Context) ([]entity.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]entity.Post, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	return out, nil
}

func (m *memAnnouncements) Create(_ context.Context, post *entity.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	m.posts[post.ID] = *post
	return nil
}

func (m *memAnnouncements) Update(_ context.Context, post *entity.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[post.ID]; !ok {
		return errors.New("missing")
	}
	m.posts[post.ID] = *post
	return nil
}

func (m *memAnnouncements) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.posts, id)
	return nil
}

func (m *memAnnouncements) SetPinned(_ context.Context, id uuid.UUID, pinned bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, nil
	}
	p.IsPinned = pinned
	m.posts[id] = p
	return true, nil
}

func (m *memAnnouncements) Stats(_ context.Context, ids []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]annRepo.PostStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := map[uuid.UUID]annRepo.PostStats{}
	for _, r := range m.reactions {
		if !slices.Contains(ids, r.PostID) {
			continue
		}
		s := out[r.PostID]
		if r.Kind == entity.ReactionLike {
			s.Likes++
		} else {
			s.Dislikes++
		}
		if viewerID != nil && r.UserID == *viewerID {
			k := r.Kind
			s.UserReaction = &k
		}
		out[r.PostID] = s
	}
	return out, nil
}

func (m *memAnnouncements) Reactions(_ context.Context, postID uuid.UUID) ([]entity.Reaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Reaction
	for _, r := range m.reactions {
		if r.PostID == postID {
			out = append(out, r)
		}
	}
	return out, nil
}

type memChildren struct {
	links []entity.Student
}

func (m *memChildren) ListByParent(_ context.Context, parentID uuid.UUID, approvedOnly bool) ([]entity.Student, error) {
	var out []entity.Student
	for _, s := range m.links {
		if s.ParentID == parentID && (!approvedOnly || s.IsApproved) {
			out = append(out, s)
		}
	}
	return out, nil
}

type memClasses map[uuid.UUID]entity.Class

func (m memClasses) FindClassByID(_ context.Context, id uuid.UUID) (*entity.Class, error) {
	c, ok := m[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type stubIndex struct {
	ids     []uuid.UUID
	err     error
	indexed []uuid.UUID
	deleted []uuid.UUID
}

func (s *stubIndex) IndexAnnouncement(_ context.Context, p *entity.Post) error {
	s.indexed = append(s.indexed, p.ID)
	return nil
}

func (s *stubIndex) DeleteAnnouncement(_ context.Context, id uuid.UUID) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubIndex) Search(_ context.Context, _ string, _ policy.Scope, _ int) ([]uuid.UUID, error) {
	return s.ids, s.err
}

func (s *stubIndex) Reindex(_ context.Context, posts []entity.Post) error {
	return s.err
}
