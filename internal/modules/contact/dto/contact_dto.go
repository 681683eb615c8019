package dto

import commonDto "anoa.com/schoolportal/pkg/dto"

type ContactInput struct {
	Name    string `json:"name" binding:"required,max=100"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required,max=255"`
	Message string `json:"message" binding:"required,max=5000"`
}

type ContactFilter struct {
	commonDto.PageQuery
	Status string `form:"status" binding:"omitempty,oneof=unread read replied"`
}

type StatusInput struct {
	Status string `json:"status" binding:"required,oneof=unread read replied"`
}
