package entity

import (
	"time"

	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var Grades = []string{"Form I", "Form II", "Form III", "Form IV"}

func ValidGrade(g string) bool {
	for _, v := range Grades {
		if v == g {
			return true
		}
	}
	return false
}

type Class struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Grade     string    `gorm:"size:20;not null;index" json:"grade"`
	Section   string    `gorm:"size:10;not null" json:"section"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Class) TableName() string {
	return "classes"
}

func (c *Class) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

// Student is a guardian link: a child tied to one parent account.
type Student struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	IndexNo       string     `gorm:"size:50;uniqueIndex;not null" json:"index_no"`
	FirstName     string     `gorm:"size:100;not null" json:"first_name"`
	LastName      string     `gorm:"size:100;not null" json:"last_name"`
	Grade         string     `gorm:"size:20;not null;index" json:"grade"`
	ClassID       *uuid.UUID `gorm:"type:uuid" json:"class_id"`
	Class         *Class     `gorm:"constraint:OnDelete:SET NULL" json:"class,omitempty"`
	ParentID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"parent_id"`
	Parent        *User      `gorm:"constraint:OnDelete:CASCADE" json:"parent,omitempty"`
	IsApproved    bool       `gorm:"not null;default:false" json:"is_approved"`
	ApprovedBy    *uuid.UUID `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt    *time.Time `json:"approved_at"`
	ApprovalNotes *string    `gorm:"type:text" json:"approval_notes"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Student) TableName() string {
	return "students"
}

func (s *Student) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID, err = uuid.NewV7()
	}
	return
}

func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (s *Student) State() policy.LinkState {
	return policy.LinkStateOf(s.IsApproved)
}

func (s *Student) Child() policy.Child {
	return policy.Child{Grade: s.Grade, ClassID: s.ClassID, Approved: s.IsApproved}
}
