package dto

import (
	commonDto "anoa.com/schoolportal/pkg/dto"
	"github.com/google/uuid"
)

type UserFilter struct {
	commonDto.PageQuery
	Role   string `form:"role" binding:"omitempty,oneof=admin teacher parent"`
	Search string `form:"search"`
}

type CreateUserInput struct {
	Name               string `json:"name" binding:"required,max=100"`
	Email              string `json:"email" binding:"required,email"`
	Password           string `json:"password" binding:"required,min=6"`
	Role               string `json:"role" binding:"required,oneof=admin teacher parent"`
	EmailNotifications *bool  `json:"email_notifications"`
}

type UpdateUserInput struct {
	Name               string `json:"name" binding:"required,max=100"`
	Email              string `json:"email" binding:"required,email"`
	Password           string `json:"password" binding:"omitempty,min=6"`
	Role               string `json:"role" binding:"required,oneof=admin teacher parent"`
	EmailNotifications *bool  `json:"email_notifications"`
}

type BulkEmailInput struct {
	RecipientIDs []uuid.UUID `json:"recipient_ids" binding:"required,min=1,max=500"`
	Subject      string      `json:"subject" binding:"required,max=255"`
	Message      string      `json:"message" binding:"required"`
}

type BulkEmailResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

type UserResponse struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Role               string    `json:"role"`
	IsApproved         bool      `json:"is_approved"`
	EmailNotifications bool      `json:"email_notifications"`
	CreatedAt          string    `json:"created_at"`
}

type Activity struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Messages int64 `json:"messages"`
	Children int64 `json:"children"`
}

type UserDetail struct {
	UserResponse
	Activity Activity `json:"activity"`
}

type UserList struct {
	commonDto.Paginated[UserResponse]
	Stats map[string]int64 `json:"stats"`
}
