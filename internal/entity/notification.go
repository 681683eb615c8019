package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationGuardianLinkSubmitted = "guardian_link_submitted"
	NotificationGuardianLinkApproved  = "guardian_link_approved"
	NotificationGuardianLinkRejected  = "guardian_link_rejected"
)

// AdminNotification is read by admins. Only IsRead changes after creation.
// RelatedStudentID has no foreign key so a rejection can outlive the link it names.
type AdminNotification struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Type             string     `gorm:"size:50;not null;index" json:"type"`
	Title            string     `gorm:"size:255;not null" json:"title"`
	Message          string     `gorm:"type:text;not null" json:"message"`
	RelatedUserID    *uuid.UUID `gorm:"type:uuid;index" json:"related_user_id"`
	RelatedStudentID *uuid.UUID `gorm:"type:uuid;index" json:"related_student_id"`
	IsRead           bool       `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (n *AdminNotification) TableName() string {
	return "admin_notifications"
}

func (n *AdminNotification) BeforeCreate(tx *gorm.DB) (err error) {
	if n.ID == uuid.Nil {
		n.ID, err = uuid.NewV7()
	}
	return
}
