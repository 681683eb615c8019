package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"anoa.com/schoolportal/internal/entity"
	notifService "anoa.com/schoolportal/internal/modules/notification/service"
	studentRepo "anoa.com/schoolportal/internal/modules/student/repository"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"anoa.com/schoolportal/pkg/ratelimiter"
	"github.com/google/uuid"
)

// memStudents mirrors the repository contract: global index_no uniqueness and
// notification rows written alongside each state change.
type memStudents struct {
	mu            sync.Mutex
	students      map[uuid.UUID]entity.Student
	classes       map[uuid.UUID]entity.Class
	users         map[uuid.UUID]entity.User
	notifications []entity.AdminNotification
	failCreate    error
}

var _ studentRepo.StudentRepository = (*memStudents)(nil)

func newMemStudents() *memStudents {
	return &memStudents{
		students: map[uuid.UUID]entity.Student{},
		classes:  map[uuid.UUID]entity.Class{},
		users:    map[uuid.UUID]entity.User{},
	}
}

func (m *memStudents) addClass(name, grade string) entity.Class {
	c := entity.Class{ID: uuid.New(), Name: name, Grade: grade, Section: name[len(name)-1:]}
	m.classes[c.ID] = c
	return c
}

func (m *memStudents) ListByParent(_ context.Context, parentID uuid.UUID, approvedOnly bool) ([]entity.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Student
	for _, s := range m.students {
		if s.ParentID == parentID && (!approvedOnly || s.IsApproved) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStudents) List(_ context.Context, filter studentRepo.ListFilter) ([]entity.Student, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Student
	for _, s := range m.students {
		if filter.Grade != "" && s.Grade != filter.Grade {
			continue
		}
		if filter.Status == studentRepo.StatusPending && s.IsApproved {
			continue
		}
		if filter.Status == studentRepo.StatusApproved && !s.IsApproved {
			continue
		}
		if u, ok := m.users[s.ParentID]; ok {
			s.Parent = &u
		}
		out = append(out, s)
	}
	return out, int64(len(out)), nil
}

func (m *memStudents) FindByID(_ context.Context, id uuid.UUID) (*entity.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	if s.ClassID != nil {
		if c, ok := m.classes[*s.ClassID]; ok {
			s.Class = &c
		}
	}
	return &s, nil
}

func (m *memStudents) FindClassByID(_ context.Context, id uuid.UUID) (*entity.Class, error) {
	c, ok := m.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStudents) ListClasses(_ context.Context, grade string) ([]entity.Class, error) {
	var out []entity.Class
	for _, c := range m.classes {
		if c.Grade == grade {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStudents) taken(indexNo string, self uuid.UUID) error {
	for id, s := range m.students {
		if id != self && s.IndexNo == indexNo {
			return fmt.Errorf("index number %s is already registered: %w", indexNo, apperror.ErrConflict)
		}
	}
	return nil
}

func (m *memStudents) Create(_ context.Context, student *entity.Student, n *entity.AdminNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	if err := m.taken(student.IndexNo, uuid.Nil); err != nil {
		return err
	}
	student.ID = uuid.New()
	student.CreatedAt = time.Now()
	m.students[student.ID] = *student
	if n != nil {
		n.ID = uuid.New()
		n.RelatedStudentID = &student.ID
		m.notifications = append(m.notifications, *n)
	}
	return nil
}

func (m *memStudents) Update(_ context.Context, student *entity.Student, _ ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.students[student.ID]
	if !ok {
		return fmt.Errorf("guardian link: %w", apperror.ErrNotFound)
	}
	if err := m.taken(student.IndexNo, student.ID); err != nil {
		return err
	}
	current.IndexNo, current.FirstName, current.LastName = student.IndexNo, student.FirstName, student.LastName
	if student.Grade != "" {
		current.Grade, current.ClassID, current.ParentID = student.Grade, student.ClassID, student.ParentID
	}
	m.students[student.ID] = current
	return nil
}

func (m *memStudents) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.students, id)
	return nil
}

func (m *memStudents) Decide(_ context.Context, id uuid.UUID, in studentRepo.DecideInput) (*studentRepo.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	current := policy.LinkDeleted
	if ok {
		current = s.State()
	}
	next, changed, err := policy.DecideLink(current, in.Verdict)
	if err != nil {
		return nil, err
	}
	out := &studentRepo.Decision{Student: s, State: next, Changed: changed}
	if !changed {
		return out, nil
	}
	if u, ok := m.users[s.ParentID]; ok {
		out.Parent = &u
	}
	for i := range m.notifications {
		n := &m.notifications[i]
		if n.RelatedStudentID != nil && *n.RelatedStudentID == id && n.Type == entity.NotificationGuardianLinkSubmitted {
			n.IsRead = true
		}
	}
	n := entity.AdminNotification{ID: uuid.New(), RelatedUserID: &s.ParentID, RelatedStudentID: &s.ID}
	if next == policy.LinkApproved {
		s.IsApproved, s.ApprovedBy, s.ApprovedAt = true, &in.AdminID, &in.At
		m.students[id] = s
		n.Type, n.IsRead, n.Message = entity.NotificationGuardianLinkApproved, true, "approved"
	} else {
		delete(m.students, id)
		n.Type, n.Message = entity.NotificationGuardianLinkRejected, "Reason: "+policy.RejectionReason(in.Notes)
	}
	m.notifications = append(m.notifications, n)
	out.Notification = &n
	return out, nil
}

func (m *memStudents) FindUser(id uuid.UUID) *entity.User {
	u, ok := m.users[id]
	if !ok {
		return nil
	}
	return &u
}

type memUsers struct{ repo *memStudents }

func (u memUsers) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	return u.repo.FindUser(id), nil
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notifService.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, events ...notifService.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

type stubLimiter struct {
	held     map[string]bool
	released []string
}

func (l *stubLimiter) Allow(_ context.Context, action, subject string, window time.Duration) error {
	if l.held[action+":"+subject] {
		return &ratelimiter.RateLimitError{Message: "slow down", RetryAfter: window}
	}
	l.held[action+":"+subject] = true
	return nil
}

func (l *stubLimiter) Release(_ context.Context, action, subject string) error {
	delete(l.held, action+":"+subject)
	l.released = append(l.released, subject)
	return nil
}
