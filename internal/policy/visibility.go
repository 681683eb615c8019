package policy

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityAll      Visibility = "all"
	VisibilityTeachers Visibility = "teachers"
	VisibilityParents  Visibility = "parents"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityAll, VisibilityTeachers, VisibilityParents:
		return true
	}
	return false
}

type TargetKind string

const (
	TargetGrade TargetKind = "grade"
	TargetClass TargetKind = "class"
)

// AudienceTarget narrows an announcement to a grade or a class. No targets means everyone.
type AudienceTarget struct {
	Kind  TargetKind
	Value string
}

// Announcement is the part of a post the visibility rules look at.
type Announcement struct {
	Visibility Visibility
	Targets    []AudienceTarget
	Pinned     bool
	CreatedAt  time.Time
}

// Child is a guardian link as seen by the audience filter.
type Child struct {
	Grade    string
	ClassID  *uuid.UUID
	Approved bool
}

// Audience is the grade and class set a parent's approved children belong to.
type Audience struct {
	grades  map[string]struct{}
	classes map[string]struct{}
}

// NewAudience keeps only approved children.
func NewAudience(children []Child) Audience {
	aud := Audience{grades: map[string]struct{}{}, classes: map[string]struct{}{}}
	for _, c := range children {
		if !c.Approved {
			continue
		}
		if c.Grade != "" {
			aud.grades[c.Grade] = struct{}{}
		}
		if c.ClassID != nil {
			aud.classes[c.ClassID.String()] = struct{}{}
		}
	}
	return aud
}

func (a Audience) Grades() []string  { return sortedKeys(a.grades) }
func (a Audience) ClassIDs() []string { return sortedKeys(a.classes) }

func (a Audience) Empty() bool { return len(a.grades) == 0 && len(a.classes) == 0 }

// Viewer pairs an actor (nil when anonymous) with the audience of their approved children.
type Viewer struct {
	Actor    *Actor
	Audience Audience
}

func Anonymous() Viewer { return Viewer{} }

// Scope is the visibility predicate in a form a query builder can translate.
// A nil Visibilities slice means no scope restriction; RestrictAudience false means
// no audience restriction. With RestrictAudience set, untargeted announcements always
// pass and targeted ones pass when a target is in Grades or ClassIDs.
type Scope struct {
	Visibilities     []Visibility
	RestrictAudience bool
	Grades           []string
	ClassIDs         []string
}

// ScopeFor derives the scope and audience filters for a viewer.
func ScopeFor(v Viewer) Scope {
	if v.Actor == nil || v.Actor.Role == nil {
		return Scope{
			Visibilities:     []Visibility{VisibilityAll},
			RestrictAudience: true,
		}
	}
	switch v.Actor.Role.(type) {
	case Admin:
		return Scope{}
	case Teacher:
		return Scope{Visibilities: []Visibility{VisibilityAll, VisibilityTeachers}}
	case Parent:
		return Scope{
			Visibilities:     []Visibility{VisibilityAll, VisibilityParents},
			RestrictAudience: true,
			Grades:           v.Audience.Grades(),
			ClassIDs:         v.Audience.ClassIDs(),
		}
	}
	return Scope{Visibilities: []Visibility{VisibilityAll}, RestrictAudience: true}
}

// Matches applies the scope to a single announcement.
func (s Scope) Matches(a Announcement) bool {
	if s.Visibilities != nil && !slices.Contains(s.Visibilities, a.Visibility) {
		return false
	}
	if !s.RestrictAudience || len(a.Targets) == 0 {
		return true
	}
	for _, t := range a.Targets {
		switch t.Kind {
		case TargetGrade:
			if slices.Contains(s.Grades, t.Value) {
				return true
			}
		case TargetClass:
			if slices.Contains(s.ClassIDs, t.Value) {
				return true
			}
		}
	}
	return false
}

// Visible reports whether the viewer may see the announcement.
func Visible(v Viewer, a Announcement) bool {
	return ScopeFor(v).Matches(a)
}

// FeedLess orders pinned announcements first, then newest first.
func FeedLess(a, b Announcement) int {
	if a.Pinned != b.Pinned {
		if a.Pinned {
			return -1
		}
		return 1
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

// FilterFeed keeps the visible items, orders them for the feed and applies limit
// when it is positive.
func FilterFeed[T any](v Viewer, items []T, view func(T) Announcement, limit int) []T {
	scope := ScopeFor(v)
	out := make([]T, 0, len(items))
	for _, it := range items {
		if scope.Matches(view(it)) {
			out = append(out, it)
		}
	}
	slices.SortStableFunc(out, func(x, y T) int { return FeedLess(view(x), view(y)) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}
