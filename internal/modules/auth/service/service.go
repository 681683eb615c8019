package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/auth/dto"
	userRepo "anoa.com/schoolportal/internal/modules/user/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/password"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const loginAction = "login"

var errInvalidCredentials = fmt.Errorf("invalid email or password: %w", apperror.ErrUnauthorized)

type RateLimiter interface {
	Allow(ctx context.Context, action, subject string, window time.Duration) error
}

// ChildCounter counts the guardian links a parent has submitted.
type ChildCounter interface {
	ListByParent(ctx context.Context, parentID uuid.UUID, approvedOnly bool) ([]entity.Student, error)
}

type AuthService interface {
	Register(ctx context.Context, input dto.RegisterInput) (*entity.User, error)
	Login(ctx context.Context, input dto.LoginInput) (*entity.User, error)
	Me(ctx context.Context, actor *policy.Actor) (*entity.User, error)
	PendingNotice(ctx context.Context, actor *policy.Actor) (*dto.PendingNotice, error)
}

type authService struct {
	repo        userRepo.UserRepository
	children    ChildCounter
	limiter     RateLimiter
	loginWindow time.Duration
	log         *zap.Logger
}

func NewAuthService(repo userRepo.UserRepository, children ChildCounter, limiter RateLimiter, loginWindow time.Duration, log *zap.Logger) AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &authService{repo: repo, children: children, limiter: limiter, loginWindow: loginWindow, log: log}
}

// Register creates a parent account that waits for admin approval.
func (s *authService) Register(ctx context.Context, input dto.RegisterInput) (*entity.User, error) {
	if input.Password != input.ConfirmPassword {
		return nil, fmt.Errorf("passwords do not match: %w", apperror.ErrInvalidInput)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", apperror.ErrInvalidInput)
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:               name,
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:       hash,
		Role:               policy.RoleParent,
		IsApproved:         policy.InitialAccountApproved(true),
		EmailNotifications: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	s.log.Info("parent registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

func (s *authService) Login(ctx context.Context, input dto.LoginInput) (*entity.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, loginAction, email, s.loginWindow); err != nil {
			var rl *ratelimiter.RateLimitError
			if errors.As(err, &rl) {
				return nil, err
			}
			s.log.Warn("rate limiter unavailable", zap.Error(err))
		}
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil || !password.Matches(user.PasswordHash, input.Password) {
		return nil, errInvalidCredentials
	}
	return user, nil
}

func (s *authService) Me(ctx context.Context, actor *policy.Actor) (*entity.User, error) {
	if actor == nil {
		return nil, apperror.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, apperror.ErrUnauthorized
	}
	return user, nil
}

// PendingNotice is only for parents still waiting; approved accounts get ErrForbidden.
func (s *authService) PendingNotice(ctx context.Context, actor *policy.Actor) (*dto.PendingNotice, error) {
	if err := policy.Authorize(actor, policy.ActionPendingNotice, nil); err != nil {
		return nil, err
	}
	if policy.IsApproved(actor) {
		return nil, fmt.Errorf("account is already approved: %w", apperror.ErrForbidden)
	}
	links, err := s.children.ListByParent(ctx, actor.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return &dto.PendingNotice{
		Message:  "Your account is awaiting approval by the school administration. You can add your children while you wait.",
		Children: len(links),
	}, nil
}
