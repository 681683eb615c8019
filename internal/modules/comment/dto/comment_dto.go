package dto

import (
	"github.com/google/uuid"

	commonDto "anoa.com/schoolportal/pkg/dto"
)

type CreateCommentInput struct {
	Content  string     `json:"content" binding:"required,notblank,max=5000"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type UpdateCommentInput struct {
	Content string `json:"content" binding:"required,notblank,max=5000"`
}

type CommentResponse struct {
	ID        uuid.UUID                `json:"id"`
	PostID    uuid.UUID                `json:"post_id"`
	ParentID  *uuid.UUID               `json:"parent_id"`
	Content   string                   `json:"content"`
	Author    commonDto.AuthorResponse `json:"author"`
	Replies   []CommentResponse        `json:"replies,omitempty"`
	CreatedAt string                   `json:"created_at"`
	UpdatedAt string                   `json:"updated_at"`
}
