package dto

import (
	commonDto "anoa.com/schoolportal/pkg/dto"
	"github.com/google/uuid"
)

// GuardianLinkInput is what a parent submits for one child.
type GuardianLinkInput struct {
	IndexNo   string     `json:"index_no" binding:"required,max=50"`
	FirstName string     `json:"first_name" binding:"required,max=100"`
	LastName  string     `json:"last_name" binding:"required,max=100"`
	Grade     string     `json:"grade" binding:"required,grade"`
	ClassID   *uuid.UUID `json:"class_id"`
}

// OwnChildUpdate is the parent's edit of an existing link. Grade and class stay
// with the admin once a link exists.
type OwnChildUpdate struct {
	IndexNo   string `json:"index_no" binding:"required,max=50"`
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
}

type AdminStudentInput struct {
	GuardianLinkInput
	ParentID uuid.UUID `json:"parent_id" binding:"required"`
}

type DecisionInput struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Notes    string `json:"notes" binding:"max=1000"`
}

type StudentFilter struct {
	commonDto.PageQuery
	Grade  string `form:"grade" binding:"omitempty,grade"`
	Status string `form:"status" binding:"omitempty,oneof=pending approved"`
	Search string `form:"search"`
}

type ClassQuery struct {
	Grade string `form:"grade" binding:"required,grade"`
}

type ClassResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Grade   string    `json:"grade"`
	Section string    `json:"section"`
}

type ParentResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

type StudentResponse struct {
	ID            uuid.UUID       `json:"id"`
	IndexNo       string          `json:"index_no"`
	FirstName     string          `json:"first_name"`
	LastName      string          `json:"last_name"`
	Grade         string          `json:"grade"`
	Class         *ClassResponse  `json:"class"`
	Parent        *ParentResponse `json:"parent,omitempty"`
	Status        string          `json:"status"`
	ApprovedBy    *uuid.UUID      `json:"approved_by"`
	ApprovedAt    *string         `json:"approved_at"`
	ApprovalNotes *string         `json:"approval_notes"`
	CreatedAt     string          `json:"created_at"`
}

type DecisionResponse struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}
