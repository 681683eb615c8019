package repository

import (
	"context"
	"fmt"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Counts struct {
	Likes    int64
	Dislikes int64
}

type ReactionRepository interface {
	// Toggle applies the toggle rule and returns the previous and resulting kinds
	// ("" for none) with counts recomputed inside the same transaction.
	Toggle(ctx context.Context, userID, postID uuid.UUID, kind string) (string, string, Counts, error)
}

type reactionRepository struct {
	db *gorm.DB
}

func NewReactionRepository(db *gorm.DB) ReactionRepository {
	return &reactionRepository{db: db}
}

func (r *reactionRepository) Toggle(ctx context.Context, userID, postID uuid.UUID, kind string) (string, string, Counts, error) {
	var (
		previous, next string
		counts         Counts
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes toggles on the post and confirms it still exists.
		var locked []entity.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", postID).
			Limit(1).
			Find(&locked).Error; err != nil {
			return err
		}
		if len(locked) == 0 {
			return fmt.Errorf("announcement: %w", apperror.ErrNotFound)
		}

		var existing []entity.Reaction
		if err := tx.Where("user_id = ? AND post_id = ?", userID, postID).
			Limit(1).
			Find(&existing).Error; err != nil {
			return err
		}
		if len(existing) > 0 {
			previous = existing[0].Kind
		}
		next = policy.NextReaction(previous, kind)

		switch {
		case previous == "":
			if err := tx.Omit("User").Create(&entity.Reaction{UserID: userID, PostID: postID, Kind: next}).Error; err != nil {
				return err
			}
		case next == "":
			if err := tx.Delete(&existing[0]).Error; err != nil {
				return err
			}
		default:
			if err := tx.Model(&existing[0]).Update("kind", next).Error; err != nil {
				return err
			}
		}

		return tx.Raw(`
			SELECT COUNT(*) FILTER (WHERE kind = ?) AS likes,
			       COUNT(*) FILTER (WHERE kind = ?) AS dislikes
			FROM reactions
			WHERE post_id = ?`, entity.ReactionLike, entity.ReactionDislike, postID).
			Scan(&counts).Error
	})
	if err != nil {
		return "", "", Counts{}, err
	}
	return previous, next, counts, nil
}
