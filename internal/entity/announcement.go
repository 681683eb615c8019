package entity

import (
	"time"

	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const DefaultCategory = "general"

// Post is an announcement. Targets empty means the whole school.
type Post struct {
	ID         uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string       `gorm:"size:255;not null" json:"title"`
	Content    string       `gorm:"type:text;not null" json:"content"`
	Category   string       `gorm:"size:50;not null;default:general;index" json:"category"`
	Visibility string       `gorm:"size:20;not null;index" json:"visibility"`
	IsPinned   bool         `gorm:"not null;default:false" json:"is_pinned"`
	ImageURL   *string      `gorm:"type:text" json:"image_url,omitempty"`
	UserID     uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	Author     User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Targets    []PostTarget `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"targets"`
	CreatedAt  time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID, err = uuid.NewV7()
	}
	return
}

// View exposes the fields the visibility rules need.
func (p *Post) View() policy.Announcement {
	targets := make([]policy.AudienceTarget, 0, len(p.Targets))
	for _, t := range p.Targets {
		targets = append(targets, policy.AudienceTarget{Kind: policy.TargetKind(t.Kind), Value: t.Value})
	}
	return policy.Announcement{
		Visibility: policy.Visibility(p.Visibility),
		Targets:    targets,
		Pinned:     p.IsPinned,
		CreatedAt:  p.CreatedAt,
	}
}

type PostTarget struct {
	PostID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Kind   string    `gorm:"size:10;primaryKey" json:"kind"`
	Value  string    `gorm:"size:64;primaryKey" json:"value"`
}

func (t *PostTarget) TableName() string {
	return "post_targets"
}

type Comment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PostID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"post_id"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Author    User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ParentID  *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}
