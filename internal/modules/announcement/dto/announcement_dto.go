package dto

import (
	"github.com/google/uuid"

	commonDto "anoa.com/schoolportal/pkg/dto"
)

// FeedLimit caps the home page feed.
const FeedLimit = 10

type ListFilter struct {
	commonDto.PageQuery
	Category string `form:"category" binding:"omitempty,max=50"`
	Search   string `form:"search" binding:"omitempty,max=100"`
}

type SearchQuery struct {
	Query string `form:"q" binding:"required,notblank,max=100"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=50"`
}

type TargetInput struct {
	Kind  string `json:"kind" binding:"required,oneof=grade class"`
	Value string `json:"value" binding:"required,notblank"`
}

type AnnouncementInput struct {
	Title      string        `json:"title" binding:"required,notblank,max=255"`
	Content    string        `json:"content" binding:"required,notblank"`
	Category   string        `json:"category" binding:"omitempty,max=50"`
	Visibility string        `json:"visibility" binding:"required,oneof=all teachers parents"`
	IsPinned   bool          `json:"is_pinned"`
	Targets    []TargetInput `json:"targets" binding:"omitempty,dive"`
}

type PinInput struct {
	Pinned *bool `json:"pinned" binding:"required"`
}

type TargetResponse struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type AnnouncementResponse struct {
	ID           uuid.UUID                `json:"id"`
	Title        string                   `json:"title"`
	Content      string                   `json:"content"`
	Category     string                   `json:"category"`
	Visibility   string                   `json:"visibility"`
	IsPinned     bool                     `json:"is_pinned"`
	ImageURL     *string                  `json:"image_url"`
	Author       commonDto.AuthorResponse `json:"author"`
	Targets      []TargetResponse         `json:"targets"`
	CommentCount int64                    `json:"comment_count"`
	LikeCount    int64                    `json:"like_count"`
	DislikeCount int64                    `json:"dislike_count"`
	UserReaction *string                  `json:"user_reaction"`
	CreatedAt    string                   `json:"created_at"`
	UpdatedAt    string                   `json:"updated_at"`
}

type Reactor struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	ReactedAt string    `json:"reacted_at"`
}

type ReactionDetails struct {
	AnnouncementID uuid.UUID `json:"announcement_id"`
	Likes          []Reactor `json:"likes"`
	Dislikes       []Reactor `json:"dislikes"`
	TotalLikes     int       `json:"total_likes"`
	TotalDislikes  int       `json:"total_dislikes"`
}
