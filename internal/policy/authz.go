package policy

import (
	"fmt"

	"anoa.com/schoolportal/pkg/apperror"
	"github.com/google/uuid"
)

// Decision is the tagged outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	DenyAuth
	DenyNotFound
	RedirectPendingApproval
	RequireLogin
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyAuth:
		return "deny_auth"
	case DenyNotFound:
		return "deny_not_found"
	case RedirectPendingApproval:
		return "redirect_pending_approval"
	case RequireLogin:
		return "require_login"
	}
	return "unknown"
}

func (d Decision) Allowed() bool { return d == Allow }

// Err converts a denial into the matching error sentinel.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case DenyNotFound:
		return fmt.Errorf("record: %w", apperror.ErrNotFound)
	case RedirectPendingApproval:
		return apperror.ErrPendingApproval
	case RequireLogin:
		return apperror.ErrUnauthorized
	}
	return fmt.Errorf("access denied: %w", apperror.ErrForbidden)
}

type Action string

const (
	ActionViewAnnouncements   Action = "announcement:view"
	ActionManageAnnouncements Action = "announcement:manage"
	ActionReact               Action = "announcement:react"
	ActionComment             Action = "comment:create"
	ActionModifyComment       Action = "comment:modify"
	ActionSubmitGuardianLink  Action = "student:submit"
	ActionManageOwnChild      Action = "student:own"
	ActionManageStudents      Action = "student:manage"
	ActionManageAccounts      Action = "user:manage"
	ActionMessage             Action = "message:use"
	ActionModifyMessage       Action = "message:modify"
	ActionContactInbox        Action = "contact:inbox"
	ActionViewNotifications   Action = "notification:view"
	ActionPendingNotice       Action = "auth:pending"
)

type rule struct {
	identity bool     // anonymous callers are sent to login
	roles    []string // role gate, checked before approval
	approved bool     // unapproved parents are redirected to the pending notice
	owner    bool     // target owner or admin only
	visible  bool     // target announcement must be visible to the actor
}

var rules = map[Action]rule{
	ActionViewAnnouncements:   {approved: true, visible: true},
	ActionManageAnnouncements: {identity: true, roles: []string{RoleAdmin}},
	ActionReact:               {identity: true, approved: true, visible: true},
	ActionComment:             {identity: true, approved: true, visible: true},
	ActionModifyComment:       {identity: true, approved: true, owner: true},
	ActionSubmitGuardianLink:  {identity: true, roles: []string{RoleParent}},
	ActionManageOwnChild:      {identity: true, roles: []string{RoleParent}, approved: true, owner: true},
	ActionManageStudents:      {identity: true, roles: []string{RoleAdmin}},
	ActionManageAccounts:      {identity: true, roles: []string{RoleAdmin}},
	ActionMessage:             {identity: true, approved: true},
	ActionModifyMessage:       {identity: true, approved: true, owner: true},
	ActionContactInbox:        {identity: true, roles: []string{RoleAdmin, RoleTeacher}},
	ActionViewNotifications:   {identity: true, roles: []string{RoleAdmin}},
	ActionPendingNotice:       {identity: true, roles: []string{RoleParent}},
}

// Target describes the record an action touches. Missing marks a lookup that found
// nothing; OwnerID and Announcement are consulted only by actions that need them.
type Target struct {
	Missing      bool
	OwnerID      uuid.UUID
	Announcement *Announcement
	Audience     Audience
}

func Found() *Target { return &Target{} }

func NotFound() *Target { return &Target{Missing: true} }

func OwnedBy(ownerID uuid.UUID) *Target { return &Target{OwnerID: ownerID} }

func OfAnnouncement(a Announcement, aud Audience) *Target {
	return &Target{Announcement: &a, Audience: aud}
}

// CheckAuthorization decides whether actor may perform action on target. A nil target
// means a route-level check with no record involved. Checks run in a fixed order:
// identity, role, approval, existence, ownership, visibility.
func CheckAuthorization(actor *Actor, action Action, target *Target) Decision {
	r, ok := rules[action]
	if !ok {
		return DenyAuth
	}
	if actor == nil && r.identity {
		return RequireLogin
	}
	if len(r.roles) > 0 && !IsRole(actor, r.roles...) {
		return DenyAuth
	}
	if actor != nil && r.approved && !IsApproved(actor) {
		return RedirectPendingApproval
	}
	if target == nil {
		return Allow
	}
	if target.Missing {
		return DenyNotFound
	}
	if r.owner && !IsSelfOrAdmin(actor, target.OwnerID) {
		return DenyAuth
	}
	if r.visible && target.Announcement != nil {
		if !Visible(Viewer{Actor: actor, Audience: target.Audience}, *target.Announcement) {
			return DenyAuth
		}
	}
	return Allow
}

// DenialHook, when set, observes every denial returned through Authorize.
var DenialHook func(Action, Decision)

// Authorize is CheckAuthorization returning an error for denials.
func Authorize(actor *Actor, action Action, target *Target) error {
	d := CheckAuthorization(actor, action, target)
	if !d.Allowed() && DenialHook != nil {
		DenialHook(action, d)
	}
	return d.Err()
}
