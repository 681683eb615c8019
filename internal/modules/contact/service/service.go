package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/contact/dto"
	contactRepo "anoa.com/schoolportal/internal/modules/contact/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const submitAction = "contact"

type RateLimiter interface {
	Allow(ctx context.Context, action, subject string, window time.Duration) error
}

type ContactService interface {
	// Submit is public; clientKey identifies the sender for rate limiting.
	Submit(ctx context.Context, clientKey string, input dto.ContactInput) (*entity.ContactMessage, error)
	List(ctx context.Context, actor *policy.Actor, filter dto.ContactFilter) (*commonDto.Paginated[entity.ContactMessage], error)
	Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.ContactMessage, error)
	SetStatus(ctx context.Context, actor *policy.Actor, id uuid.UUID, status string) error
	Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error
}

type contactService struct {
	repo      contactRepo.ContactRepository
	limiter   RateLimiter
	window    time.Duration
	sanitizer *bluemonday.Policy
	log       *zap.Logger
}

func NewContactService(repo contactRepo.ContactRepository, limiter RateLimiter, window time.Duration, log *zap.Logger) ContactService {
	if log == nil {
		log = zap.NewNop()
	}
	return &contactService{repo: repo, limiter: limiter, window: window, sanitizer: bluemonday.StrictPolicy(), log: log}
}

func (s *contactService) Submit(ctx context.Context, clientKey string, input dto.ContactInput) (*entity.ContactMessage, error) {
	msg := &entity.ContactMessage{
		Name:    strings.TrimSpace(s.sanitizer.Sanitize(input.Name)),
		Email:   strings.ToLower(strings.TrimSpace(input.Email)),
		Subject: strings.TrimSpace(s.sanitizer.Sanitize(input.Subject)),
		Message: strings.TrimSpace(s.sanitizer.Sanitize(input.Message)),
		Status:  entity.ContactUnread,
	}
	if msg.Name == "" || msg.Email == "" || msg.Subject == "" || msg.Message == "" {
		return nil, fmt.Errorf("name, email, subject and message are required: %w", apperror.ErrInvalidInput)
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, submitAction, clientKey, s.window); err != nil {
			var rl *ratelimiter.RateLimitError
			if errors.As(err, &rl) {
				return nil, err
			}
			s.log.Warn("rate limiter unavailable", zap.Error(err))
		}
	}

	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("save contact message: %w", err)
	}
	return msg, nil
}

func (s *contactService) List(ctx context.Context, actor *policy.Actor, filter dto.ContactFilter) (*commonDto.Paginated[entity.ContactMessage], error) {
	if err := policy.Authorize(actor, policy.ActionContactInbox, nil); err != nil {
		return nil, err
	}
	limit, offset := filter.Normalize()
	msgs, total, err := s.repo.List(ctx, filter.Status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return &commonDto.Paginated[entity.ContactMessage]{Data: msgs, Meta: commonDto.NewMeta(filter.PageQuery, total)}, nil
}

// Get marks an unread message as read.
func (s *contactService) Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.ContactMessage, error) {
	msg, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if msg.Status == entity.ContactUnread {
		if err := s.repo.SetStatus(ctx, id, entity.ContactRead); err != nil {
			return nil, fmt.Errorf("mark contact message read: %w", err)
		}
		msg.Status = entity.ContactRead
	}
	return msg, nil
}

func (s *contactService) SetStatus(ctx context.Context, actor *policy.Actor, id uuid.UUID, status string) error {
	if !entity.ValidContactStatus(status) {
		return fmt.Errorf("status must be unread, read or replied: %w", apperror.ErrInvalidInput)
	}
	if _, err := s.find(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.SetStatus(ctx, id, status)
}

func (s *contactService) Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	if _, err := s.find(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *contactService) find(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.ContactMessage, error) {
	if err := policy.Authorize(actor, policy.ActionContactInbox, nil); err != nil {
		return nil, err
	}
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find contact message: %w", err)
	}
	if msg == nil {
		return nil, policy.Authorize(actor, policy.ActionContactInbox, policy.NotFound())
	}
	return msg, nil
}
