package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation stores its pair ordered so (a, b) and (b, a) share one row.
type Conversation struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	User1ID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair,priority:1" json:"user1_id"`
	User2ID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_conversation_pair,priority:2" json:"user2_id"`
	LastMessageAt time.Time `gorm:"not null" json:"last_message_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (c *Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

// OrderedPair returns the two ids in the order conversations store them.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func (c *Conversation) Other(userID uuid.UUID) uuid.UUID {
	if c.User1ID == userID {
		return c.User2ID
	}
	return c.User1ID
}

type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	ReceiverID     uuid.UUID `gorm:"type:uuid;not null;index" json:"receiver_id"`
	Subject        string    `gorm:"size:255;not null" json:"subject"`
	Body           string    `gorm:"type:text;not null" json:"message"`
	IsRead         bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (m *Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID, err = uuid.NewV7()
	}
	return
}

type ContactMessage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Subject   string    `gorm:"size:255;not null" json:"subject"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Status    string    `gorm:"size:20;not null;default:unread;index" json:"status"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

const (
	ContactUnread  = "unread"
	ContactRead    = "read"
	ContactReplied = "replied"
)

func ValidContactStatus(s string) bool {
	return s == ContactUnread || s == ContactRead || s == ContactReplied
}

func (c *ContactMessage) TableName() string {
	return "contact_messages"
}

func (c *ContactMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

// EmailNotification logs one recipient of an admin broadcast.
type EmailNotification struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID    uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	RecipientID uuid.UUID `gorm:"type:uuid;not null;index" json:"recipient_id"`
	Subject     string    `gorm:"size:255;not null" json:"subject"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	IsSent      bool      `gorm:"not null;default:false" json:"is_sent"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (e *EmailNotification) TableName() string {
	return "email_notifications"
}

func (e *EmailNotification) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID, err = uuid.NewV7()
	}
	return
}
