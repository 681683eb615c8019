package service

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/message/dto"
	msgRepo "anoa.com/schoolportal/internal/modules/message/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type MessageService interface {
	Conversations(ctx context.Context, actor *policy.Actor) ([]dto.ConversationResponse, error)
	// Open returns the thread with another user and marks what they sent as read.
	Open(ctx context.Context, actor *policy.Actor, otherID uuid.UUID) (*dto.ThreadResponse, error)
	Send(ctx context.Context, actor *policy.Actor, input dto.SendMessageInput) (*dto.MessageResponse, error)
	Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error
	UnreadCount(ctx context.Context, actor *policy.Actor) (int64, error)
}

type messageService struct {
	repo      msgRepo.MessageRepository
	users     UserFinder
	sanitizer *bluemonday.Policy
}

func NewMessageService(repo msgRepo.MessageRepository, users UserFinder) MessageService {
	return &messageService{repo: repo, users: users, sanitizer: bluemonday.StrictPolicy()}
}

func (s *messageService) Conversations(ctx context.Context, actor *policy.Actor) ([]dto.ConversationResponse, error) {
	if err := policy.Authorize(actor, policy.ActionMessage, nil); err != nil {
		return nil, err
	}
	summaries, err := s.repo.Conversations(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]dto.ConversationResponse, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, dto.ConversationResponse{
			ID:            sum.Conversation.ID,
			With:          author(sum.Other),
			LastMessageAt: commonDto.FormatTime(sum.Conversation.LastMessageAt),
			UnreadCount:   sum.Unread,
		})
	}
	return out, nil
}

func (s *messageService) Open(ctx context.Context, actor *policy.Actor, otherID uuid.UUID) (*dto.ThreadResponse, error) {
	if err := policy.Authorize(actor, policy.ActionMessage, nil); err != nil {
		return nil, err
	}
	other, err := s.counterpart(ctx, actor, otherID)
	if err != nil {
		return nil, err
	}
	conv, err := s.repo.Conversation(ctx, actor.ID, other.ID)
	if err != nil {
		return nil, fmt.Errorf("open conversation: %w", err)
	}
	if _, err := s.repo.MarkRead(ctx, conv.ID, actor.ID); err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}
	msgs, err := s.repo.Messages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	res := &dto.ThreadResponse{ConversationID: conv.ID, With: author(*other), Messages: make([]dto.MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		res.Messages = append(res.Messages, toResponse(m, actor.ID))
	}
	return res, nil
}

func (s *messageService) Send(ctx context.Context, actor *policy.Actor, input dto.SendMessageInput) (*dto.MessageResponse, error) {
	if err := policy.Authorize(actor, policy.ActionMessage, nil); err != nil {
		return nil, err
	}
	receiver, err := s.counterpart(ctx, actor, input.ReceiverID)
	if err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(s.sanitizer.Sanitize(input.Subject))
	body := strings.TrimSpace(s.sanitizer.Sanitize(input.Message))
	if subject == "" || body == "" {
		return nil, fmt.Errorf("subject and message are required: %w", apperror.ErrInvalidInput)
	}

	msg := &entity.Message{SenderID: actor.ID, ReceiverID: receiver.ID, Subject: subject, Body: body}
	if err := s.repo.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	res := toResponse(*msg, actor.ID)
	return &res, nil
}

func (s *messageService) Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	msg, err := s.repo.FindMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("find message: %w", err)
	}
	if msg == nil {
		return policy.Authorize(actor, policy.ActionModifyMessage, policy.NotFound())
	}
	if err := policy.Authorize(actor, policy.ActionModifyMessage, policy.OwnedBy(msg.SenderID)); err != nil {
		return err
	}
	if err := s.repo.DeleteMessage(ctx, msg.ID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *messageService) UnreadCount(ctx context.Context, actor *policy.Actor) (int64, error) {
	if err := policy.Authorize(actor, policy.ActionMessage, nil); err != nil {
		return 0, err
	}
	return s.repo.UnreadCount(ctx, actor.ID)
}

func (s *messageService) counterpart(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.User, error) {
	if id == actor.ID {
		return nil, fmt.Errorf("you cannot message yourself: %w", apperror.ErrInvalidInput)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("recipient: %w", apperror.ErrNotFound)
	}
	return user, nil
}

func author(u entity.User) commonDto.AuthorResponse {
	return commonDto.AuthorResponse{ID: u.ID, Name: u.Name, Role: u.Role}
}

func toResponse(m entity.Message, self uuid.UUID) dto.MessageResponse {
	return dto.MessageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Subject:    m.Subject,
		Message:    m.Body,
		IsRead:     m.IsRead,
		Mine:       m.SenderID == self,
		CreatedAt:  commonDto.FormatTime(m.CreatedAt),
	}
}
