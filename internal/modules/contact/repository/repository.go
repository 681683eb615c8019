package repository

import (
	"context"

	"anoa.com/schoolportal/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContactRepository interface {
	Create(ctx context.Context, msg *entity.ContactMessage) error
	List(ctx context.Context, status string, limit, offset int) ([]entity.ContactMessage, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.ContactMessage, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) Create(ctx context.Context, msg *entity.ContactMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *contactRepository) List(ctx context.Context, status string, limit, offset int) ([]entity.ContactMessage, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.ContactMessage{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var msgs []entity.ContactMessage
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&msgs).Error
	return msgs, total, err
}

func (r *contactRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.ContactMessage, error) {
	var msgs []entity.ContactMessage
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&msgs).Error; err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (r *contactRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).Model(&entity.ContactMessage{}).Where("id = ?", id).Update("status", status).Error
}

func (r *contactRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.ContactMessage{}, "id = ?", id).Error
}
