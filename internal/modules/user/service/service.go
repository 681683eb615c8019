package service

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/user/dto"
	userRepo "anoa.com/schoolportal/internal/modules/user/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"anoa.com/schoolportal/pkg/mailer"
	"anoa.com/schoolportal/pkg/metrics"
	"anoa.com/schoolportal/pkg/password"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService interface {
	List(ctx context.Context, actor *policy.Actor, filter dto.UserFilter) (*dto.UserList, error)
	Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.UserDetail, error)
	Create(ctx context.Context, actor *policy.Actor, input dto.CreateUserInput) (*dto.UserResponse, error)
	Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.UpdateUserInput) (*dto.UserResponse, error)
	Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error
	ApproveAccount(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.UserResponse, error)
	BulkEmail(ctx context.Context, actor *policy.Actor, input dto.BulkEmailInput) (*dto.BulkEmailResult, error)
}

type userService struct {
	repo    userRepo.UserRepository
	mailer  mailer.Mailer
	appName string
	log     *zap.Logger
}

func NewUserService(repo userRepo.UserRepository, m mailer.Mailer, appName string, log *zap.Logger) UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &userService{repo: repo, mailer: m, appName: appName, log: log}
}

func (s *userService) List(ctx context.Context, actor *policy.Actor, filter dto.UserFilter) (*dto.UserList, error) {
	if err := policy.Authorize(actor, policy.ActionManageAccounts, nil); err != nil {
		return nil, err
	}
	limit, offset := filter.Normalize()
	users, total, err := s.repo.List(ctx, userRepo.ListFilter{Role: filter.Role, Search: filter.Search, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	counts, err := s.repo.RoleStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("role stats: %w", err)
	}

	stats := map[string]int64{policy.RoleAdmin: 0, policy.RoleTeacher: 0, policy.RoleParent: 0}
	for _, c := range counts {
		stats[c.Role] = c.Total
	}
	out := make([]dto.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, ToResponse(u))
	}
	return &dto.UserList{
		Paginated: commonDto.Paginated[dto.UserResponse]{Data: out, Meta: commonDto.NewMeta(filter.PageQuery, total)},
		Stats:     stats,
	}, nil
}

func (s *userService) Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.UserDetail, error) {
	user, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	activity, err := s.repo.Activity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user activity: %w", err)
	}
	return &dto.UserDetail{
		UserResponse: ToResponse(*user),
		Activity: dto.Activity{
			Posts:    activity.Posts,
			Comments: activity.Comments,
			Messages: activity.Messages,
			Children: activity.Children,
		},
	}, nil
}

func (s *userService) Create(ctx context.Context, actor *policy.Actor, input dto.CreateUserInput) (*dto.UserResponse, error) {
	if err := policy.Authorize(actor, policy.ActionManageAccounts, nil); err != nil {
		return nil, err
	}
	if !policy.ValidRoleName(input.Role) {
		return nil, fmt.Errorf("role must be admin, teacher or parent: %w", apperror.ErrInvalidInput)
	}
	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Name:               strings.TrimSpace(input.Name),
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash:       hash,
		Role:               input.Role,
		IsApproved:         policy.InitialAccountApproved(false),
		EmailNotifications: true,
	}
	if input.EmailNotifications != nil {
		user.EmailNotifications = *input.EmailNotifications
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.welcome(ctx, user)
	res := ToResponse(*user)
	return &res, nil
}

// welcome is best effort: a failed email never undoes the account.
func (s *userService) welcome(ctx context.Context, user *entity.User) {
	if s.mailer == nil {
		return
	}
	err := s.mailer.Send(ctx, mailer.Message{
		ToName:  user.Name,
		ToEmail: user.Email,
		Subject: "Welcome to " + s.appName,
		Text: fmt.Sprintf("Hello %s,\n\nAn account with the %s role was created for you on %s. Sign in with this email address and the password your administrator gave you.",
			user.Name, user.Role, s.appName),
	})
	if err != nil {
		metrics.SideEffectFailed("email")
		s.log.Warn("welcome email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (s *userService) Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.UpdateUserInput) (*dto.UserResponse, error) {
	user, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !policy.ValidRoleName(input.Role) {
		return nil, fmt.Errorf("role must be admin, teacher or parent: %w", apperror.ErrInvalidInput)
	}
	if user.ID == actor.ID && input.Role != user.Role {
		return nil, fmt.Errorf("you cannot change your own role: %w", apperror.ErrInvalidInput)
	}

	columns := []string{"name", "email", "role", "email_notifications", "updated_at"}
	user.Name = strings.TrimSpace(input.Name)
	user.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Role != user.Role {
		// A role change leaves the account approved: only self-registration starts pending.
		user.Role = input.Role
		user.IsApproved = true
		columns = append(columns, "is_approved")
	}
	if input.EmailNotifications != nil {
		user.EmailNotifications = *input.EmailNotifications
	}
	if input.Password != "" {
		hash, err := password.Hash(input.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
		columns = append(columns, "password_hash")
	}

	if err := s.repo.Update(ctx, user, columns...); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	res := ToResponse(*user)
	return &res, nil
}

func (s *userService) Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	user, err := s.managed(ctx, actor, id)
	if err != nil {
		return err
	}
	if user.ID == actor.ID {
		return fmt.Errorf("you cannot delete your own account: %w", apperror.ErrInvalidInput)
	}
	if err := s.repo.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *userService) ApproveAccount(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.UserResponse, error) {
	if err := policy.Authorize(actor, policy.ActionManageAccounts, nil); err != nil {
		return nil, err
	}
	user, changed, err := s.repo.Approve(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("approve account: %w", err)
	}
	if changed {
		metrics.ApprovalDecisions.WithLabelValues("account", string(policy.VerdictApprove)).Inc()
		s.log.Info("account approved", zap.String("user_id", id.String()), zap.String("admin_id", actor.ID.String()))
		s.notifyApproved(ctx, user)
	}
	res := ToResponse(*user)
	return &res, nil
}

func (s *userService) notifyApproved(ctx context.Context, user *entity.User) {
	if s.mailer == nil || !user.EmailNotifications {
		return
	}
	err := s.mailer.Send(ctx, mailer.Message{
		ToName:  user.Name,
		ToEmail: user.Email,
		Subject: "Your account has been approved",
		Text:    fmt.Sprintf("Hello %s,\n\nYour %s account is now active. You can sign in and see announcements for your children.", user.Name, s.appName),
	})
	if err != nil {
		metrics.SideEffectFailed("email")
		s.log.Warn("approval email failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

// BulkEmail sends one message per recipient and logs each attempt.
func (s *userService) BulkEmail(ctx context.Context, actor *policy.Actor, input dto.BulkEmailInput) (*dto.BulkEmailResult, error) {
	if err := policy.Authorize(actor, policy.ActionManageAccounts, nil); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Message)
	if subject == "" || body == "" {
		return nil, fmt.Errorf("subject and message are required: %w", apperror.ErrInvalidInput)
	}
	recipients, err := s.repo.FindByIDs(ctx, input.RecipientIDs)
	if err != nil {
		return nil, fmt.Errorf("find recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no recipients found: %w", apperror.ErrInvalidInput)
	}

	result := &dto.BulkEmailResult{}
	logs := make([]entity.EmailNotification, 0, len(recipients))
	for _, r := range recipients {
		sent := false
		if s.mailer != nil {
			err := s.mailer.Send(ctx, mailer.Message{ToName: r.Name, ToEmail: r.Email, Subject: subject, Text: body})
			if err != nil {
				s.log.Warn("bulk email failed", zap.String("recipient_id", r.ID.String()), zap.Error(err))
			} else {
				sent = true
			}
		}
		if sent {
			result.Sent++
		} else {
			result.Failed++
		}
		logs = append(logs, entity.EmailNotification{
			SenderID:    actor.ID,
			RecipientID: r.ID,
			Subject:     subject,
			Message:     body,
			IsSent:      sent,
		})
	}
	if err := s.repo.LogEmails(ctx, logs); err != nil {
		return nil, fmt.Errorf("log emails: %w", err)
	}
	return result, nil
}

func (s *userService) managed(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.User, error) {
	if err := policy.Authorize(actor, policy.ActionManageAccounts, nil); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, policy.Authorize(actor, policy.ActionManageAccounts, policy.NotFound())
	}
	return user, nil
}

func ToResponse(u entity.User) dto.UserResponse {
	return dto.UserResponse{
		ID:                 u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		IsApproved:         u.IsApproved,
		EmailNotifications: u.EmailNotifications,
		CreatedAt:          commonDto.FormatTime(u.CreatedAt),
	}
}
