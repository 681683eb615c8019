package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/schoolportal/internal/entity"
	notifService "anoa.com/schoolportal/internal/modules/notification/service"
	"anoa.com/schoolportal/internal/modules/student/dto"
	studentRepo "anoa.com/schoolportal/internal/modules/student/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"anoa.com/schoolportal/pkg/export"
	"anoa.com/schoolportal/pkg/metrics"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const submitAction = "guardian_link"

type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, action, subject string, window time.Duration) error
	Release(ctx context.Context, action, subject string) error
}

type StudentService interface {
	SubmitGuardianLink(ctx context.Context, actor *policy.Actor, input dto.GuardianLinkInput) (*dto.StudentResponse, error)
	DecideGuardianLink(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.DecisionInput) (*dto.DecisionResponse, error)

	ListMine(ctx context.Context, actor *policy.Actor) ([]dto.StudentResponse, error)
	UpdateMine(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.OwnChildUpdate) (*dto.StudentResponse, error)
	DeleteMine(ctx context.Context, actor *policy.Actor, id uuid.UUID) error

	List(ctx context.Context, actor *policy.Actor, filter dto.StudentFilter) (*commonDto.Paginated[dto.StudentResponse], error)
	Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.StudentResponse, error)
	Create(ctx context.Context, actor *policy.Actor, input dto.AdminStudentInput) (*dto.StudentResponse, error)
	Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.AdminStudentInput) (*dto.StudentResponse, error)
	Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error
	Export(ctx context.Context, actor *policy.Actor, filter dto.StudentFilter) ([]byte, error)

	Classes(ctx context.Context, grade string) ([]dto.ClassResponse, error)
}

type studentService struct {
	repo         studentRepo.StudentRepository
	users        UserFinder
	dispatcher   notifService.Dispatcher
	limiter      RateLimiter
	submitWindow time.Duration
	log          *zap.Logger
	now          func() time.Time
}

func NewStudentService(
	repo studentRepo.StudentRepository,
	users UserFinder,
	dispatcher notifService.Dispatcher,
	limiter RateLimiter,
	submitWindow time.Duration,
	log *zap.Logger,
) StudentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &studentService{
		repo:         repo,
		users:        users,
		dispatcher:   dispatcher,
		limiter:      limiter,
		submitWindow: submitWindow,
		log:          log,
		now:          time.Now,
	}
}

func (s *studentService) SubmitGuardianLink(ctx context.Context, actor *policy.Actor, input dto.GuardianLinkInput) (*dto.StudentResponse, error) {
	if err := policy.Authorize(actor, policy.ActionSubmitGuardianLink, nil); err != nil {
		return nil, err
	}
	if err := s.claim(ctx, actor.ID); err != nil {
		return nil, err
	}

	student, err := s.newLink(ctx, input, actor.ID)
	if err != nil {
		s.release(ctx, actor.ID)
		return nil, err
	}
	student.IsApproved = policy.InitialLinkApproved(actor)

	notice := &entity.AdminNotification{
		Type:          entity.NotificationGuardianLinkSubmitted,
		Title:         "New guardian link awaiting approval",
		Message:       fmt.Sprintf("%s submitted %s (%s, %s) for approval.", actor.Name, student.FullName(), student.IndexNo, student.Grade),
		RelatedUserID: &actor.ID,
	}
	if err := s.repo.Create(ctx, student, notice); err != nil {
		s.release(ctx, actor.ID)
		return nil, fmt.Errorf("submit guardian link: %w", err)
	}

	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, notifService.Event{Notification: *notice})
	}
	return s.reload(ctx, student)
}

func (s *studentService) DecideGuardianLink(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.DecisionInput) (*dto.DecisionResponse, error) {
	if err := policy.Authorize(actor, policy.ActionManageStudents, nil); err != nil {
		return nil, err
	}
	verdict := policy.Verdict(input.Decision)
	if !verdict.Valid() {
		return nil, fmt.Errorf("decision must be approve or reject: %w", apperror.ErrInvalidInput)
	}

	decision, err := s.repo.Decide(ctx, id, studentRepo.DecideInput{
		Verdict: verdict,
		AdminID: actor.ID,
		Notes:   strings.TrimSpace(input.Notes),
		At:      s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("decide guardian link: %w", err)
	}

	res := &dto.DecisionResponse{ID: id, Status: string(decision.State)}
	if !decision.Changed {
		return res, nil
	}
	metrics.ApprovalDecisions.WithLabelValues("guardian_link", string(verdict)).Inc()
	s.log.Info("guardian link decided",
		zap.String("student_id", id.String()),
		zap.String("decision", string(verdict)),
		zap.String("admin_id", actor.ID.String()),
	)

	if s.dispatcher != nil && decision.Notification != nil {
		s.dispatcher.Dispatch(ctx, decisionEvent(decision, strings.TrimSpace(input.Notes)))
	}
	return res, nil
}

func decisionEvent(d *studentRepo.Decision, notes string) notifService.Event {
	ev := notifService.Event{Notification: *d.Notification, Recipient: d.Parent}
	name := d.Student.FullName()
	switch d.State {
	case policy.LinkApproved:
		ev.Subject = "Your child's registration was approved"
		ev.Body = fmt.Sprintf("%s (%s) is now linked to your account. You will see announcements for %s.", name, d.Student.IndexNo, d.Student.Grade)
	case policy.LinkDeleted:
		ev.Subject = "Your child's registration was rejected"
		ev.Body = fmt.Sprintf("%s (%s) was not approved. Reason: %s", name, d.Student.IndexNo, policy.RejectionReason(notes))
	}
	return ev
}

func (s *studentService) ListMine(ctx context.Context, actor *policy.Actor) ([]dto.StudentResponse, error) {
	if err := policy.Authorize(actor, policy.ActionManageOwnChild, nil); err != nil {
		return nil, err
	}
	students, err := s.repo.ListByParent(ctx, actor.ID, false)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return toResponses(students, false), nil
}

func (s *studentService) UpdateMine(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.OwnChildUpdate) (*dto.StudentResponse, error) {
	student, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	student.IndexNo = strings.TrimSpace(input.IndexNo)
	student.FirstName = strings.TrimSpace(input.FirstName)
	student.LastName = strings.TrimSpace(input.LastName)
	if err := requireNames(student); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student, "index_no", "first_name", "last_name", "updated_at"); err != nil {
		return nil, fmt.Errorf("update child: %w", err)
	}
	return s.reload(ctx, student)
}

func (s *studentService) DeleteMine(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	student, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, student.ID); err != nil {
		return fmt.Errorf("delete child: %w", err)
	}
	return nil
}

// owned fetches the link by id, then checks the parent owns it.
func (s *studentService) owned(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find child: %w", err)
	}
	if student == nil {
		return nil, policy.Authorize(actor, policy.ActionManageOwnChild, policy.NotFound())
	}
	if err := policy.Authorize(actor, policy.ActionManageOwnChild, policy.OwnedBy(student.ParentID)); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *studentService) List(ctx context.Context, actor *policy.Actor, filter dto.StudentFilter) (*commonDto.Paginated[dto.StudentResponse], error) {
	if err := policy.Authorize(actor, policy.ActionManageStudents, nil); err != nil {
		return nil, err
	}
	limit, offset := filter.Normalize()
	students, total, err := s.repo.List(ctx, studentRepo.ListFilter{
		Grade:  filter.Grade,
		Status: filter.Status,
		Search: filter.Search,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return &commonDto.Paginated[dto.StudentResponse]{
		Data: toResponses(students, true),
		Meta: commonDto.NewMeta(filter.PageQuery, total),
	}, nil
}

func (s *studentService) Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.StudentResponse, error) {
	student, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	res := toResponse(*student, true)
	return &res, nil
}

func (s *studentService) Create(ctx context.Context, actor *policy.Actor, input dto.AdminStudentInput) (*dto.StudentResponse, error) {
	if err := policy.Authorize(actor, policy.ActionManageStudents, nil); err != nil {
		return nil, err
	}
	if err := s.requireApprovedParent(ctx, input.ParentID); err != nil {
		return nil, err
	}
	student, err := s.newLink(ctx, input.GuardianLinkInput, input.ParentID)
	if err != nil {
		return nil, err
	}
	if policy.InitialLinkApproved(actor) {
		now := s.now().UTC()
		student.IsApproved = true
		student.ApprovedBy = &actor.ID
		student.ApprovedAt = &now
	}
	if err := s.repo.Create(ctx, student, nil); err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return s.reload(ctx, student)
}

func (s *studentService) Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.AdminStudentInput) (*dto.StudentResponse, error) {
	student, err := s.managed(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if input.ParentID != student.ParentID {
		if err := s.requireApprovedParent(ctx, input.ParentID); err != nil {
			return nil, err
		}
	}
	next, err := s.newLink(ctx, input.GuardianLinkInput, input.ParentID)
	if err != nil {
		return nil, err
	}
	next.ID = student.ID
	if err := s.repo.Update(ctx, next, "index_no", "first_name", "last_name", "grade", "class_id", "parent_id", "updated_at"); err != nil {
		return nil, fmt.Errorf("update student: %w", err)
	}
	return s.reload(ctx, next)
}

func (s *studentService) Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	student, err := s.managed(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, student.ID); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

func (s *studentService) managed(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*entity.Student, error) {
	if err := policy.Authorize(actor, policy.ActionManageStudents, nil); err != nil {
		return nil, err
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find student: %w", err)
	}
	if student == nil {
		return nil, policy.Authorize(actor, policy.ActionManageStudents, policy.NotFound())
	}
	return student, nil
}

var exportHeader = []string{"Index No", "First Name", "Last Name", "Grade", "Class", "Parent", "Parent Email", "Status", "Approved At"}

func (s *studentService) Export(ctx context.Context, actor *policy.Actor, filter dto.StudentFilter) ([]byte, error) {
	if err := policy.Authorize(actor, policy.ActionManageStudents, nil); err != nil {
		return nil, err
	}
	students, _, err := s.repo.List(ctx, studentRepo.ListFilter{
		Grade:  filter.Grade,
		Status: filter.Status,
		Search: filter.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}

	rows := make([][]string, 0, len(students))
	for _, st := range students {
		res := toResponse(st, true)
		class, parent, email, approvedAt := "", "", "", ""
		if res.Class != nil {
			class = res.Class.Name
		}
		if res.Parent != nil {
			parent, email = res.Parent.Name, res.Parent.Email
		}
		if res.ApprovedAt != nil {
			approvedAt = *res.ApprovedAt
		}
		rows = append(rows, []string{res.IndexNo, res.FirstName, res.LastName, res.Grade, class, parent, email, res.Status, approvedAt})
	}

	f, err := export.Workbook([]export.Sheet{{Title: "Students", Header: exportHeader, Rows: rows}})
	if err != nil {
		return nil, fmt.Errorf("build roster: %w", err)
	}
	return export.Bytes(f)
}

func (s *studentService) Classes(ctx context.Context, grade string) ([]dto.ClassResponse, error) {
	if !entity.ValidGrade(grade) {
		return nil, fmt.Errorf("grade must be one of %s: %w", strings.Join(entity.Grades, ", "), apperror.ErrInvalidInput)
	}
	classes, err := s.repo.ListClasses(ctx, grade)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	out := make([]dto.ClassResponse, 0, len(classes))
	for _, c := range classes {
		out = append(out, classResponse(c))
	}
	return out, nil
}

// newLink validates the submitted fields and builds an unsaved link for parentID.
func (s *studentService) newLink(ctx context.Context, input dto.GuardianLinkInput, parentID uuid.UUID) (*entity.Student, error) {
	student := &entity.Student{
		IndexNo:   strings.TrimSpace(input.IndexNo),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Grade:     strings.TrimSpace(input.Grade),
		ClassID:   input.ClassID,
		ParentID:  parentID,
	}
	if err := requireNames(student); err != nil {
		return nil, err
	}
	if !entity.ValidGrade(student.Grade) {
		return nil, fmt.Errorf("grade must be one of %s: %w", strings.Join(entity.Grades, ", "), apperror.ErrInvalidInput)
	}
	if student.ClassID != nil {
		class, err := s.repo.FindClassByID(ctx, *student.ClassID)
		if err != nil {
			return nil, fmt.Errorf("find class: %w", err)
		}
		if class == nil {
			return nil, fmt.Errorf("class not found: %w", apperror.ErrInvalidInput)
		}
		if class.Grade != student.Grade {
			return nil, fmt.Errorf("class %s is not in %s: %w", class.Name, student.Grade, apperror.ErrInvalidInput)
		}
	}
	return student, nil
}

func requireNames(s *entity.Student) error {
	if s.IndexNo == "" || s.FirstName == "" || s.LastName == "" {
		return fmt.Errorf("index number, first name and last name are required: %w", apperror.ErrInvalidInput)
	}
	return nil
}

func (s *studentService) requireApprovedParent(ctx context.Context, id uuid.UUID) error {
	parent, err := s.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("find parent: %w", err)
	}
	if parent == nil || parent.Role != policy.RoleParent || !parent.IsApproved {
		return fmt.Errorf("parent must be an approved parent account: %w", apperror.ErrInvalidInput)
	}
	return nil
}

func (s *studentService) claim(ctx context.Context, parentID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Allow(ctx, submitAction, parentID.String(), s.submitWindow)
	if err == nil {
		return nil
	}
	var rl *ratelimiter.RateLimitError
	if errors.As(err, &rl) {
		return err
	}
	// Limiter outages must not block submissions.
	metrics.SideEffectFailed("rate_limit")
	s.log.Warn("rate limiter unavailable", zap.Error(err))
	return nil
}

func (s *studentService) release(ctx context.Context, parentID uuid.UUID) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.Release(ctx, submitAction, parentID.String()); err != nil {
		s.log.Warn("rate limit release failed", zap.Error(err))
	}
}

func (s *studentService) reload(ctx context.Context, student *entity.Student) (*dto.StudentResponse, error) {
	fresh, err := s.repo.FindByID(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("reload student: %w", err)
	}
	if fresh == nil {
		fresh = student
	}
	res := toResponse(*fresh, false)
	return &res, nil
}

func toResponses(students []entity.Student, withParent bool) []dto.StudentResponse {
	out := make([]dto.StudentResponse, 0, len(students))
	for _, st := range students {
		out = append(out, toResponse(st, withParent))
	}
	return out
}

func toResponse(st entity.Student, withParent bool) dto.StudentResponse {
	res := dto.StudentResponse{
		ID:            st.ID,
		IndexNo:       st.IndexNo,
		FirstName:     st.FirstName,
		LastName:      st.LastName,
		Grade:         st.Grade,
		Status:        studentRepo.StatusPending,
		ApprovedBy:    st.ApprovedBy,
		ApprovalNotes: st.ApprovalNotes,
		CreatedAt:     commonDto.FormatTime(st.CreatedAt),
	}
	if st.IsApproved {
		res.Status = studentRepo.StatusApproved
	}
	if st.ApprovedAt != nil {
		at := commonDto.FormatTime(*st.ApprovedAt)
		res.ApprovedAt = &at
	}
	if st.Class != nil {
		c := classResponse(*st.Class)
		res.Class = &c
	}
	if withParent && st.Parent != nil {
		res.Parent = &dto.ParentResponse{ID: st.Parent.ID, Name: st.Parent.Name, Email: st.Parent.Email}
	}
	return res
}

func classResponse(c entity.Class) dto.ClassResponse {
	return dto.ClassResponse{ID: c.ID, Name: c.Name, Grade: c.Grade, Section: c.Section}
}
