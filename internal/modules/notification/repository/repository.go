package repository

import (
	"context"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationRepository interface {
	List(ctx context.Context, unreadOnly bool, limit, offset int) ([]entity.AdminNotification, int64, error)
	CountUnread(ctx context.Context) (int64, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) (bool, error)
	MarkAllAsRead(ctx context.Context) (int64, error)
	PurgeRead(ctx context.Context, before time.Time) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) List(ctx context.Context, unreadOnly bool, limit, offset int) ([]entity.AdminNotification, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.AdminNotification{})
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []entity.AdminNotification
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	return notifications, total, err
}

func (r *notificationRepository) CountUnread(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.AdminNotification{}).Where("is_read = ?", false).Count(&count).Error
	return count, err
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.AdminNotification{}).Where("id = ?", id).Update("is_read", true)
	return res.RowsAffected > 0, res.Error
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.AdminNotification{}).Where("is_read = ?", false).Update("is_read", true)
	return res.RowsAffected, res.Error
}

// PurgeRead removes read notifications created before the cutoff.
func (r *notificationRepository) PurgeRead(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("is_read = ? AND created_at < ?", true, before).Delete(&entity.AdminNotification{})
	return res.RowsAffected, res.Error
}
