package dto

import (
	commonDto "anoa.com/schoolportal/pkg/dto"
	"github.com/google/uuid"
)

type SendMessageInput struct {
	ReceiverID uuid.UUID `json:"receiver_id" binding:"required"`
	Subject    string    `json:"subject" binding:"required,max=255"`
	Message    string    `json:"message" binding:"required"`
}

type MessageResponse struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	IsRead     bool      `json:"is_read"`
	Mine       bool      `json:"mine"`
	CreatedAt  string    `json:"created_at"`
}

type ConversationResponse struct {
	ID            uuid.UUID                `json:"id"`
	With          commonDto.AuthorResponse `json:"with"`
	LastMessageAt string                   `json:"last_message_at"`
	UnreadCount   int64                    `json:"unread_count"`
}

type ThreadResponse struct {
	ConversationID uuid.UUID                `json:"conversation_id"`
	With           commonDto.AuthorResponse `json:"with"`
	Messages       []MessageResponse        `json:"messages"`
}
