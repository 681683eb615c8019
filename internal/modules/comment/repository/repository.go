package repository

import (
	"context"

	"anoa.com/schoolportal/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CommentRepository interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]entity.Comment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error)
	Create(ctx context.Context, comment *entity.Comment) error
	UpdateContent(ctx context.Context, id uuid.UUID, content string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]entity.Comment, error) {
	var comments []entity.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error) {
	var comments []entity.Comment
	if err := r.db.WithContext(ctx).Preload("Author").Where("id = ?", id).Limit(1).Find(&comments).Error; err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, nil
	}
	return &comments[0], nil
}

func (r *commentRepository) Create(ctx context.Context, comment *entity.Comment) error {
	return r.db.WithContext(ctx).Omit("Author").Create(comment).Error
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) error {
	return r.db.WithContext(ctx).Model(&entity.Comment{}).Where("id = ?", id).Update("content", content).Error
}

// Delete removes the comment; replies go with it through the parent_id cascade.
func (r *commentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Comment{}).Error
}
