package repository

import (
	"context"
	"time"

	"anoa.com/schoolportal/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationSummary struct {
	Conversation entity.Conversation
	Other        entity.User
	Unread       int64
}

type MessageRepository interface {
	Conversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error)
	// Conversation returns the pair's conversation, creating it when absent.
	Conversation(ctx context.Context, a, b uuid.UUID) (*entity.Conversation, error)
	Messages(ctx context.Context, conversationID uuid.UUID) ([]entity.Message, error)
	MarkRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error)
	// Send stores the message and bumps last_message_at on its conversation.
	Send(ctx context.Context, msg *entity.Message) error
	FindMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Conversations(ctx context.Context, userID uuid.UUID) ([]ConversationSummary, error) {
	var convs []entity.Conversation
	if err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&convs).Error; err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(convs))
	others := make([]uuid.UUID, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
		others = append(others, c.Other(userID))
	}

	var users []entity.User
	if err := r.db.WithContext(ctx).Where("id IN ?", others).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]entity.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	var unread []struct {
		ConversationID uuid.UUID
		Total          int64
	}
	if err := r.db.WithContext(ctx).Model(&entity.Message{}).
		Select("conversation_id, COUNT(*) AS total").
		Where("conversation_id IN ? AND receiver_id = ? AND is_read = ?", ids, userID, false).
		Group("conversation_id").
		Scan(&unread).Error; err != nil {
		return nil, err
	}
	counts := make(map[uuid.UUID]int64, len(unread))
	for _, u := range unread {
		counts[u.ConversationID] = u.Total
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, ConversationSummary{Conversation: c, Other: byID[c.Other(userID)], Unread: counts[c.ID]})
	}
	return out, nil
}

func (r *messageRepository) Conversation(ctx context.Context, a, b uuid.UUID) (*entity.Conversation, error) {
	return getOrCreate(r.db.WithContext(ctx), a, b)
}

func getOrCreate(tx *gorm.DB, a, b uuid.UUID) (*entity.Conversation, error) {
	u1, u2 := entity.OrderedPair(a, b)
	conv := entity.Conversation{User1ID: u1, User2ID: u2, LastMessageAt: time.Now()}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conv).Error; err != nil {
		return nil, err
	}
	var found entity.Conversation
	if err := tx.Where("user1_id = ? AND user2_id = ?", u1, u2).First(&found).Error; err != nil {
		return nil, err
	}
	return &found, nil
}

func (r *messageRepository) Messages(ctx context.Context, conversationID uuid.UUID) ([]entity.Message, error) {
	var msgs []entity.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) MarkRead(ctx context.Context, conversationID, receiverID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entity.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, receiverID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *messageRepository) Send(ctx context.Context, msg *entity.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := getOrCreate(tx, msg.SenderID, msg.ReceiverID)
		if err != nil {
			return err
		}
		msg.ConversationID = conv.ID
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&entity.Conversation{ID: conv.ID}).Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *messageRepository) FindMessage(ctx context.Context, id uuid.UUID) (*entity.Message, error) {
	var msgs []entity.Message
	if err := r.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&msgs).Error; err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	return &msgs[0], nil
}

func (r *messageRepository) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entity.Message{}, "id = ?", id).Error
}

func (r *messageRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Message{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
