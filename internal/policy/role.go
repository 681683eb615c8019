// Package policy holds the portal's access decisions: who an actor is, which
// announcements they may see, and which approval transitions are legal. Everything
// here is a pure function of its arguments.
package policy

import (
	"fmt"

	"anoa.com/schoolportal/pkg/apperror"
	"github.com/google/uuid"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleParent  = "parent"
)

// Role is the closed set of account roles. Only this package can add variants.
type Role interface {
	Name() string
	isRole()
}

type Admin struct{}

type Teacher struct{}

// Parent carries the account approval flag; the other roles are always approved.
type Parent struct {
	Approved bool
}

func (Admin) Name() string   { return RoleAdmin }
func (Teacher) Name() string { return RoleTeacher }
func (Parent) Name() string  { return RoleParent }

func (Admin) isRole()   {}
func (Teacher) isRole() {}
func (Parent) isRole()  {}

// ParseRole turns the stored role string and approval flag into a Role.
func ParseRole(name string, approved bool) (Role, error) {
	switch name {
	case RoleAdmin:
		return Admin{}, nil
	case RoleTeacher:
		return Teacher{}, nil
	case RoleParent:
		return Parent{Approved: approved}, nil
	}
	return nil, fmt.Errorf("unknown role %q: %w", name, apperror.ErrInvalidInput)
}

// ValidRoleName reports whether name is one of the stored role strings.
func ValidRoleName(name string) bool {
	_, err := ParseRole(name, true)
	return err == nil
}

// Actor is an authenticated identity. A nil *Actor is the anonymous viewer.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role Role
}

func NewActor(id uuid.UUID, name, role string, approved bool) (*Actor, error) {
	r, err := ParseRole(role, approved)
	if err != nil {
		return nil, err
	}
	return &Actor{ID: id, Name: name, Role: r}, nil
}

func (a *Actor) RoleName() string {
	if a == nil || a.Role == nil {
		return ""
	}
	return a.Role.Name()
}

func (a *Actor) IsAdmin() bool {
	if a == nil {
		return false
	}
	_, ok := a.Role.(Admin)
	return ok
}

func (a *Actor) IsParent() bool {
	if a == nil {
		return false
	}
	_, ok := a.Role.(Parent)
	return ok
}

// IsApproved is true for staff and for parents whose account an admin approved.
func IsApproved(a *Actor) bool {
	if a == nil {
		return false
	}
	switch r := a.Role.(type) {
	case Admin, Teacher:
		return true
	case Parent:
		return r.Approved
	}
	return false
}

// IsRole reports whether the actor holds any of the given roles.
func IsRole(a *Actor, roles ...string) bool {
	name := a.RoleName()
	if name == "" {
		return false
	}
	for _, r := range roles {
		if r == name {
			return true
		}
	}
	return false
}

func IsSelfOrAdmin(a *Actor, ownerID uuid.UUID) bool {
	if a == nil {
		return false
	}
	return a.ID == ownerID || a.IsAdmin()
}
