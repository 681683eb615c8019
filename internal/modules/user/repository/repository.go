package repository

import (
	"context"
	"fmt"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListFilter struct {
	Role   string
	Search string
	Limit  int
	Offset int
}

type RoleCount struct {
	Role  string
	Total int64
}

type ActivityCounts struct {
	Posts    int64
	Comments int64
	Messages int64
	Children int64
}

type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error)
	List(ctx context.Context, filter ListFilter) ([]entity.User, int64, error)
	RoleStats(ctx context.Context) ([]RoleCount, error)
	Activity(ctx context.Context, id uuid.UUID) (ActivityCounts, error)
	CountByRole(ctx context.Context, role string) (int64, error)

	// Create fails with a conflict when the email is taken.
	Create(ctx context.Context, user *entity.User) error
	// Update writes the given columns; a taken email is a conflict.
	Update(ctx context.Context, user *entity.User, columns ...string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Approve applies the account approval transition under a row lock.
	Approve(ctx context.Context, id uuid.UUID) (*entity.User, bool, error)
	LogEmails(ctx context.Context, rows []entity.EmailNotification) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) first(q *gorm.DB) (*entity.User, error) {
	var users []entity.User
	if err := q.Limit(1).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.first(r.db.WithContext(ctx).Where("LOWER(email) = LOWER(?)", strings.TrimSpace(email)))
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []entity.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("name ASC").Find(&users).Error
	return users, err
}

func (r *userRepository) List(ctx context.Context, filter ListFilter) ([]entity.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.User{})
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s) + "%"
		q = q.Where("(name ILIKE ? OR email ILIKE ?)", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []entity.User
	err := q.Order("created_at DESC").Limit(filter.Limit).Offset(filter.Offset).Find(&users).Error
	return users, total, err
}

func (r *userRepository) RoleStats(ctx context.Context) ([]RoleCount, error) {
	var stats []RoleCount
	err := r.db.WithContext(ctx).Model(&entity.User{}).
		Select("role, COUNT(*) AS total").
		Group("role").
		Order("role").
		Scan(&stats).Error
	return stats, err
}

func (r *userRepository) Activity(ctx context.Context, id uuid.UUID) (ActivityCounts, error) {
	var counts ActivityCounts
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM posts WHERE user_id = @id) AS posts,
			(SELECT COUNT(*) FROM comments WHERE user_id = @id) AS comments,
			(SELECT COUNT(*) FROM messages WHERE sender_id = @id OR receiver_id = @id) AS messages,
			(SELECT COUNT(*) FROM students WHERE parent_id = @id) AS children`,
		map[string]any{"id": id}).
		Scan(&counts).Error
	return counts, err
}

func (r *userRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return emailConflict(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := emailTaken(tx, user.Email, uuid.Nil); err != nil {
			return err
		}
		return tx.Create(user).Error
	}))
}

func (r *userRepository) Update(ctx context.Context, user *entity.User, columns ...string) error {
	return emailConflict(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := emailTaken(tx, user.Email, user.ID); err != nil {
			return err
		}
		return tx.Model(&entity.User{ID: user.ID}).Select(columns).Updates(user).Error
	}))
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.User{}, "id = ?", id).Error
}

func (r *userRepository) Approve(ctx context.Context, id uuid.UUID) (*entity.User, bool, error) {
	var (
		user    *entity.User
		changed bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		user, err = r.first(tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
		if err != nil {
			return err
		}
		if user == nil {
			return fmt.Errorf("account: %w", apperror.ErrNotFound)
		}
		role, err := policy.ParseRole(user.Role, user.IsApproved)
		if err != nil {
			return err
		}
		if _, changed, err = policy.ApproveAccount(role); err != nil || !changed {
			return err
		}
		user.IsApproved = true
		return tx.Model(&entity.User{ID: id}).Update("is_approved", true).Error
	})
	if err != nil {
		return nil, false, err
	}
	return user, changed, nil
}

func (r *userRepository) LogEmails(ctx context.Context, rows []entity.EmailNotification) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func emailTaken(tx *gorm.DB, email string, self uuid.UUID) error {
	var count int64
	q := tx.Model(&entity.User{}).Where("LOWER(email) = LOWER(?)", email)
	if self != uuid.Nil {
		q = q.Where("id <> ?", self)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("email %s is already registered: %w", email, apperror.ErrConflict)
	}
	return nil
}

func emailConflict(err error) error {
	if err != nil && database.IsUniqueViolation(err) {
		return fmt.Errorf("email is already registered: %w", apperror.ErrConflict)
	}
	return err
}
