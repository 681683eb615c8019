package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

type ListFilter struct {
	Grade  string
	Status string
	Search string
	Limit  int
	Offset int
}

// Decision is what DecideLink left behind: the link as it was before the change,
// the state it moved to, and the notification row written with it.
type Decision struct {
	Student      entity.Student
	Parent       *entity.User
	State        policy.LinkState
	Changed      bool
	Notification *entity.AdminNotification
}

// DecideInput carries the admin decision into the locked transaction.
type DecideInput struct {
	Verdict policy.Verdict
	AdminID uuid.UUID
	Notes   string
	At      time.Time
}

type StudentRepository interface {
	ListByParent(ctx context.Context, parentID uuid.UUID, approvedOnly bool) ([]entity.Student, error)
	List(ctx context.Context, filter ListFilter) ([]entity.Student, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Student, error)
	FindClassByID(ctx context.Context, id uuid.UUID) (*entity.Class, error)
	ListClasses(ctx context.Context, grade string) ([]entity.Class, error)

	// Create inserts the link and, when notification is non-nil, the admin
	// notification announcing it, in one transaction.
	Create(ctx context.Context, student *entity.Student, notification *entity.AdminNotification) error
	// Update locks the row, re-checks index_no against other records and writes the given columns.
	Update(ctx context.Context, student *entity.Student, columns ...string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Decide(ctx context.Context, id uuid.UUID, input DecideInput) (*Decision, error)
}

type studentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) ListByParent(ctx context.Context, parentID uuid.UUID, approvedOnly bool) ([]entity.Student, error) {
	q := r.db.WithContext(ctx).Preload("Class").Where("parent_id = ?", parentID)
	if approvedOnly {
		q = q.Where("is_approved = ?", true)
	}
	var students []entity.Student
	err := q.Order("created_at ASC").Find(&students).Error
	return students, err
}

func (r *studentRepository) List(ctx context.Context, filter ListFilter) ([]entity.Student, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Student{})
	if filter.Grade != "" {
		q = q.Where("students.grade = ?", filter.Grade)
	}
	switch filter.Status {
	case StatusPending:
		q = q.Where("students.is_approved = ?", false)
	case StatusApproved:
		q = q.Where("students.is_approved = ?", true)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		q = q.Where(
			"(students.first_name ILIKE ? OR students.last_name ILIKE ? OR students.index_no ILIKE ?)",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Class").Preload("Parent").Order("students.created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	var students []entity.Student
	err := q.Find(&students).Error
	return students, total, err
}

func (r *studentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Student, error) {
	var students []entity.Student
	err := r.db.WithContext(ctx).
		Preload("Class").
		Preload("Parent").
		Where("id = ?", id).
		Limit(1).
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return nil, nil
	}
	return &students[0], nil
}

func (r *studentRepository) FindClassByID(ctx context.Context, id uuid.UUID) (*entity.Class, error) {
	var classes []entity.Class
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&classes).Error; err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, nil
	}
	return &classes[0], nil
}

func (r *studentRepository) ListClasses(ctx context.Context, grade string) ([]entity.Class, error) {
	q := r.db.WithContext(ctx)
	if grade != "" {
		q = q.Where("grade = ?", grade)
	}
	var classes []entity.Class
	err := q.Order("grade ASC, section ASC").Find(&classes).Error
	return classes, err
}

func (r *studentRepository) Create(ctx context.Context, student *entity.Student, notification *entity.AdminNotification) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := indexTaken(tx, student.IndexNo, uuid.Nil); err != nil {
			return err
		}
		if err := tx.Omit("Class", "Parent").Create(student).Error; err != nil {
			return err
		}
		if notification == nil {
			return nil
		}
		notification.RelatedStudentID = &student.ID
		return tx.Create(notification).Error
	}))
}

func (r *studentRepository) Update(ctx context.Context, student *entity.Student, columns ...string) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []entity.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", student.ID).
			Limit(1).
			Find(&locked).Error; err != nil {
			return err
		}
		if len(locked) == 0 {
			return fmt.Errorf("guardian link: %w", apperror.ErrNotFound)
		}
		if err := indexTaken(tx, student.IndexNo, student.ID); err != nil {
			return err
		}
		return tx.Model(&entity.Student{ID: student.ID}).
			Select(columns).
			Omit("Class", "Parent").
			Updates(student).Error
	}))
}

func (r *studentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.Student{}, "id = ?", id).Error
}

func (r *studentRepository) Decide(ctx context.Context, id uuid.UUID, input DecideInput) (*Decision, error) {
	var out Decision
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []entity.Student
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Limit(1).
			Find(&rows).Error; err != nil {
			return err
		}
		current := policy.LinkDeleted
		if len(rows) > 0 {
			current = rows[0].State()
		}
		next, changed, err := policy.DecideLink(current, input.Verdict)
		if err != nil {
			return err
		}
		student := rows[0]
		out = Decision{Student: student, State: next, Changed: changed}
		if !changed {
			return nil
		}

		var parents []entity.User
		if err := tx.Where("id = ?", student.ParentID).Limit(1).Find(&parents).Error; err != nil {
			return err
		}
		if len(parents) > 0 {
			out.Parent = &parents[0]
		}

		// The submission notice is handled either way.
		if err := tx.Model(&entity.AdminNotification{}).
			Where("related_student_id = ? AND type = ? AND is_read = ?", student.ID, entity.NotificationGuardianLinkSubmitted, false).
			Update("is_read", true).Error; err != nil {
			return err
		}

		switch next {
		case policy.LinkApproved:
			updates := map[string]any{
				"is_approved": true,
				"approved_by": input.AdminID,
				"approved_at": input.At,
			}
			if input.Notes != "" {
				updates["approval_notes"] = input.Notes
			}
			if err := tx.Model(&entity.Student{ID: student.ID}).Updates(updates).Error; err != nil {
				return err
			}
			out.Student.IsApproved = true
			out.Student.ApprovedBy = &input.AdminID
			out.Student.ApprovedAt = &input.At
			out.Notification = approvedNotice(student, input.Notes)
		case policy.LinkDeleted:
			if err := tx.Delete(&entity.Student{}, "id = ?", student.ID).Error; err != nil {
				return err
			}
			out.Notification = rejectedNotice(student, policy.RejectionReason(input.Notes))
		}
		return tx.Create(out.Notification).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// approvedNotice is stored already read: the admin who approved is its only audience.
func approvedNotice(s entity.Student, notes string) *entity.AdminNotification {
	msg := fmt.Sprintf("%s (%s) was approved.", s.FullName(), s.IndexNo)
	if notes != "" {
		msg += " Notes: " + notes
	}
	return &entity.AdminNotification{
		Type:             entity.NotificationGuardianLinkApproved,
		Title:            "Guardian link approved",
		Message:          msg,
		RelatedUserID:    &s.ParentID,
		RelatedStudentID: &s.ID,
		IsRead:           true,
	}
}

func rejectedNotice(s entity.Student, reason string) *entity.AdminNotification {
	return &entity.AdminNotification{
		Type:             entity.NotificationGuardianLinkRejected,
		Title:            "Guardian link rejected",
		Message:          fmt.Sprintf("%s (%s) was rejected. Reason: %s", s.FullName(), s.IndexNo, reason),
		RelatedUserID:    &s.ParentID,
		RelatedStudentID: &s.ID,
	}
}

func indexTaken(tx *gorm.DB, indexNo string, self uuid.UUID) error {
	var count int64
	q := tx.Model(&entity.Student{}).Where("index_no = ?", indexNo)
	if self != uuid.Nil {
		q = q.Where("id <> ?", self)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("index number %s is already registered: %w", indexNo, apperror.ErrConflict)
	}
	return nil
}

// translate maps a unique violation that slipped past indexTaken to a conflict.
func translate(err error) error {
	if err != nil && database.IsUniqueViolation(err) {
		return fmt.Errorf("index number is already registered: %w", apperror.ErrConflict)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
