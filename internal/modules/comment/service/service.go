package service

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/comment/dto"
	commentRepo "anoa.com/schoolportal/internal/modules/comment/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type AnnouncementAccess interface {
	Access(ctx context.Context, actor *policy.Actor, action policy.Action, id uuid.UUID) (*entity.Post, error)
}

type CommentService interface {
	List(ctx context.Context, actor *policy.Actor, postID uuid.UUID) ([]dto.CommentResponse, error)
	Create(ctx context.Context, actor *policy.Actor, postID uuid.UUID, input dto.CreateCommentInput) (*dto.CommentResponse, error)
	Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.UpdateCommentInput) (*dto.CommentResponse, error)
	Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error
}

type commentService struct {
	repo          commentRepo.CommentRepository
	announcements AnnouncementAccess
	sanitizer     *bluemonday.Policy
}

func NewCommentService(repo commentRepo.CommentRepository, announcements AnnouncementAccess) CommentService {
	return &commentService{
		repo:          repo,
		announcements: announcements,
		sanitizer:     bluemonday.StrictPolicy(),
	}
}

func (s *commentService) List(ctx context.Context, actor *policy.Actor, postID uuid.UUID) ([]dto.CommentResponse, error) {
	if _, err := s.announcements.Access(ctx, actor, policy.ActionViewAnnouncements, postID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListByPost(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return thread(comments), nil
}

func (s *commentService) Create(ctx context.Context, actor *policy.Actor, postID uuid.UUID, input dto.CreateCommentInput) (*dto.CommentResponse, error) {
	if _, err := s.announcements.Access(ctx, actor, policy.ActionComment, postID); err != nil {
		return nil, err
	}
	content, err := s.clean(input.Content)
	if err != nil {
		return nil, err
	}

	comment := &entity.Comment{PostID: postID, UserID: actor.ID, Content: content}
	if input.ParentID != nil {
		parent, err := s.repo.FindByID(ctx, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("find parent comment: %w", err)
		}
		if parent == nil || parent.PostID != postID {
			return nil, fmt.Errorf("parent comment does not belong to this announcement: %w", apperror.ErrInvalidInput)
		}
		// Threads are one level deep: a reply to a reply hangs off the top-level comment.
		top := parent.ID
		if parent.ParentID != nil {
			top = *parent.ParentID
		}
		comment.ParentID = &top
	}

	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	created, err := s.repo.FindByID(ctx, comment.ID)
	if err != nil {
		return nil, fmt.Errorf("reload comment: %w", err)
	}
	if created == nil {
		created = comment
	}
	res := toResponse(*created)
	return &res, nil
}

// owned fetches the comment, then checks the actor may modify it.
func (s *commentService) owned(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.Comment, error) {
	comment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	if comment == nil {
		return nil, policy.Authorize(actor, policy.ActionModifyComment, policy.NotFound())
	}
	if err := policy.Authorize(actor, policy.ActionModifyComment, policy.OwnedBy(comment.UserID)); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *commentService) Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.UpdateCommentInput) (*dto.CommentResponse, error) {
	comment, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	content, err := s.clean(input.Content)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateContent(ctx, comment.ID, content); err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	comment.Content = content
	res := toResponse(*comment)
	return &res, nil
}

func (s *commentService) Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	comment, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, comment.ID); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

func (s *commentService) clean(content string) (string, error) {
	out := strings.TrimSpace(s.sanitizer.Sanitize(content))
	if out == "" {
		return "", fmt.Errorf("comment cannot be empty: %w", apperror.ErrInvalidInput)
	}
	return out, nil
}

// thread nests replies under their top-level comment, keeping creation order.
func thread(comments []entity.Comment) []dto.CommentResponse {
	roots := make([]dto.CommentResponse, 0, len(comments))
	index := make(map[uuid.UUID]int, len(comments))
	for _, c := range comments {
		if c.ParentID == nil {
			index[c.ID] = len(roots)
			roots = append(roots, toResponse(c))
		}
	}
	for _, c := range comments {
		if c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			roots[i].Replies = append(roots[i].Replies, toResponse(c))
		}
	}
	return roots
}

func toResponse(c entity.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:       c.ID,
		PostID:   c.PostID,
		ParentID: c.ParentID,
		Content:  c.Content,
		Author: commonDto.AuthorResponse{
			ID:   c.Author.ID,
			Name: c.Author.Name,
			Role: c.Author.Role,
		},
		CreatedAt: commonDto.FormatTime(c.CreatedAt),
		UpdatedAt: commonDto.FormatTime(c.UpdatedAt),
	}
}
