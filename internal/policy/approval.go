package policy

import (
	"fmt"

	"anoa.com/schoolportal/pkg/apperror"
)

// ApproveAccount is the only account transition: an unapproved parent becomes an
// approved one. Approving an approved parent is a no-op; staff accounts have no
// approval state to change.
func ApproveAccount(r Role) (Role, bool, error) {
	p, ok := r.(Parent)
	if !ok {
		return r, false, fmt.Errorf("only parent accounts need approval: %w", apperror.ErrInvalidInput)
	}
	if p.Approved {
		return p, false, nil
	}
	return Parent{Approved: true}, true, nil
}

type LinkState string

const (
	LinkUnapproved LinkState = "unapproved"
	LinkApproved   LinkState = "approved"
	LinkDeleted    LinkState = "deleted"
)

func LinkStateOf(approved bool) LinkState {
	if approved {
		return LinkApproved
	}
	return LinkUnapproved
}

// Verdict is an admin's decision on a guardian link.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

func (v Verdict) Valid() bool {
	return v == VerdictApprove || v == VerdictReject
}

// DecideLink returns the state a guardian link moves to and whether anything changed.
// Approval is one-way; rejection is terminal and only applies to links still
// awaiting a decision.
func DecideLink(current LinkState, v Verdict) (LinkState, bool, error) {
	if !v.Valid() {
		return current, false, fmt.Errorf("decision must be approve or reject: %w", apperror.ErrInvalidInput)
	}
	switch current {
	case LinkDeleted:
		return current, false, fmt.Errorf("guardian link: %w", apperror.ErrNotFound)
	case LinkApproved:
		if v == VerdictApprove {
			return LinkApproved, false, nil
		}
		return current, false, fmt.Errorf("approved guardian link cannot be rejected: %w", apperror.ErrConflict)
	case LinkUnapproved:
		if v == VerdictApprove {
			return LinkApproved, true, nil
		}
		return LinkDeleted, true, nil
	}
	return current, false, fmt.Errorf("unknown link state %q: %w", current, apperror.ErrInvalidInput)
}

// InitialLinkApproved is true when an admin creates the link directly.
func InitialLinkApproved(creator *Actor) bool {
	return creator.IsAdmin()
}

// InitialAccountApproved: self-registration yields an unapproved parent, admin
// creation is approved.
func InitialAccountApproved(selfRegistered bool) bool {
	return !selfRegistered
}

const DefaultRejectionReason = "No reason provided"

func RejectionReason(notes string) string {
	if notes == "" {
		return DefaultRejectionReason
	}
	return notes
}
