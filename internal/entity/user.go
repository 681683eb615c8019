package entity

import (
	"time"

	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name               string    `gorm:"size:100;not null" json:"name"`
	Email              string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash       string    `gorm:"size:255;not null" json:"-"`
	Role               string    `gorm:"size:20;not null;index" json:"role"`
	IsApproved         bool      `gorm:"not null" json:"is_approved"`
	EmailNotifications bool      `gorm:"not null" json:"email_notifications"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u *User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID, err = uuid.NewV7()
	}
	return
}

// Actor converts the stored account into the identity the access rules work with.
func (u *User) Actor() (*policy.Actor, error) {
	return policy.NewActor(u.ID, u.Name, u.Role, u.IsApproved)
}

func (u *User) IsPendingParent() bool {
	return u.Role == policy.RoleParent && !u.IsApproved
}
