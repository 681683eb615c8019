package dto

import (
	userDto "anoa.com/schoolportal/internal/modules/user/dto"
)

type RegisterInput struct {
	Name            string `json:"name" binding:"required,max=100"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken     string               `json:"access_token"`
	TokenType       string               `json:"token_type"`
	ExpiresIn       int64                `json:"expires_in"`
	User            userDto.UserResponse `json:"user"`
	PendingApproval bool                 `json:"pending_approval"`
	Redirect        string               `json:"redirect,omitempty"`
}

type PendingNotice struct {
	Message  string `json:"message"`
	Children int    `json:"children_submitted"`
}
