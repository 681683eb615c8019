package service

import (
	"context"
	"fmt"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/notification/dto"
	notifRepo "anoa.com/schoolportal/internal/modules/notification/repository"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"github.com/google/uuid"
)

type NotificationService interface {
	List(ctx context.Context, filter dto.NotificationFilter) (*commonDto.Paginated[entity.AdminNotification], error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context) (int64, error)
	PurgeRead(ctx context.Context, retention time.Duration) (int64, error)
}

type notificationService struct {
	repo notifRepo.NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo notifRepo.NotificationRepository) NotificationService {
	return &notificationService{repo: repo, now: time.Now}
}

func (s *notificationService) List(ctx context.Context, filter dto.NotificationFilter) (*commonDto.Paginated[entity.AdminNotification], error) {
	limit, offset := filter.Normalize()
	items, total, err := s.repo.List(ctx, filter.UnreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return &commonDto.Paginated[entity.AdminNotification]{
		Data: items,
		Meta: commonDto.NewMeta(filter.PageQuery, total),
	}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context) (int64, error) {
	return s.repo.CountUnread(ctx)
}

func (s *notificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	found, err := s.repo.MarkAsRead(ctx, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !found {
		return fmt.Errorf("notification: %w", apperror.ErrNotFound)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(ctx context.Context) (int64, error) {
	return s.repo.MarkAllAsRead(ctx)
}

// PurgeRead deletes read notifications older than retention.
func (s *notificationService) PurgeRead(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return s.repo.PurgeRead(ctx, s.now().Add(-retention))
}
