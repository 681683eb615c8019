package service

import (
	"context"
	"fmt"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/reaction/dto"
	reactionRepo "anoa.com/schoolportal/internal/modules/reaction/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/metrics"
	"github.com/google/uuid"
)

// AnnouncementAccess loads an announcement and authorizes an action on it.
type AnnouncementAccess interface {
	Access(ctx context.Context, actor *policy.Actor, action policy.Action, id uuid.UUID) (*entity.Post, error)
}

type ReactionService interface {
	React(ctx context.Context, actor *policy.Actor, postID uuid.UUID, kind string) (*dto.ReactionResult, error)
}

type reactionService struct {
	repo          reactionRepo.ReactionRepository
	announcements AnnouncementAccess
}

func NewReactionService(repo reactionRepo.ReactionRepository, announcements AnnouncementAccess) ReactionService {
	return &reactionService{repo: repo, announcements: announcements}
}

func (s *reactionService) React(ctx context.Context, actor *policy.Actor, postID uuid.UUID, kind string) (*dto.ReactionResult, error) {
	if !entity.ValidReactionKind(kind) {
		return nil, fmt.Errorf("reaction must be like or dislike: %w", apperror.ErrInvalidInput)
	}
	if _, err := s.announcements.Access(ctx, actor, policy.ActionReact, postID); err != nil {
		return nil, err
	}

	previous, next, counts, err := s.repo.Toggle(ctx, actor.ID, postID, kind)
	if err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	metrics.ReactionToggles.WithLabelValues(policy.ReactionOutcome(previous, next)).Inc()

	res := &dto.ReactionResult{Likes: counts.Likes, Dislikes: counts.Dislikes}
	if next != "" {
		res.UserReaction = &next
	}
	return res, nil
}
