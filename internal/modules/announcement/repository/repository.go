package repository

import (
	"context"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListFilter adds the optional listing conditions on top of the visibility scope.
// Limit 0 means no limit. IDs, when non-nil, restricts the result to those posts.
type ListFilter struct {
	Category string
	Search   string
	IDs      []uuid.UUID
	Limit    int
	Offset   int
}

type PostStats struct {
	Comments     int64
	Likes        int64
	Dislikes     int64
	UserReaction *string
}

type AnnouncementRepository interface {
	ListVisible(ctx context.Context, scope policy.Scope, filter ListFilter) ([]entity.Post, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error)
	FindAll(ctx context.Context) ([]entity.Post, error)
	Create(ctx context.Context, post *entity.Post) error
	Update(ctx context.Context, post *entity.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error)
	Stats(ctx context.Context, postIDs []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]PostStats, error)
	Reactions(ctx context.Context, postID uuid.UUID) ([]entity.Reaction, error)
}

type announcementRepository struct {
	db *gorm.DB
}

func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

const untargeted = "NOT EXISTS (SELECT 1 FROM post_targets pt WHERE pt.post_id = posts.id)"

// applyScope is the SQL form of policy.Scope.Matches.
func applyScope(q *gorm.DB, scope policy.Scope) *gorm.DB {
	if scope.Visibilities != nil {
		vis := make([]string, 0, len(scope.Visibilities))
		for _, v := range scope.Visibilities {
			vis = append(vis, string(v))
		}
		q = q.Where("posts.visibility IN ?", vis)
	}
	if !scope.RestrictAudience {
		return q
	}

	var (
		conds []string
		args  []any
	)
	if len(scope.Grades) > 0 {
		conds = append(conds, "(pt.kind = ? AND pt.value IN ?)")
		args = append(args, string(policy.TargetGrade), scope.Grades)
	}
	if len(scope.ClassIDs) > 0 {
		conds = append(conds, "(pt.kind = ? AND pt.value IN ?)")
		args = append(args, string(policy.TargetClass), scope.ClassIDs)
	}
	if len(conds) == 0 {
		return q.Where(untargeted)
	}

	matched := "EXISTS (SELECT 1 FROM post_targets pt WHERE pt.post_id = posts.id AND (" + strings.Join(conds, " OR ") + "))"
	return q.Where("("+untargeted+" OR "+matched+")", args...)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *announcementRepository) ListVisible(ctx context.Context, scope policy.Scope, filter ListFilter) ([]entity.Post, int64, error) {
	q := applyScope(r.db.WithContext(ctx).Model(&entity.Post{}), scope)

	if filter.Category != "" && filter.Category != "all" {
		q = q.Where("posts.category = ?", filter.Category)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		q = q.Where("(posts.title ILIKE ? OR posts.content ILIKE ?)", pattern, pattern)
	}
	if filter.IDs != nil {
		if len(filter.IDs) == 0 {
			return []entity.Post{}, 0, nil
		}
		q = q.Where("posts.id IN ?", filter.IDs)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Preload("Author").Preload("Targets").
		Order("posts.is_pinned DESC").
		Order("posts.created_at DESC").
		Order("posts.id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}

	var posts []entity.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *announcementRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	var posts []entity.Post
	if err := r.db.WithContext(ctx).
		Preload("Author").
		Preload("Targets").
		Where("id = ?", id).
		Limit(1).
		Find(&posts).Error; err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}

func (r *announcementRepository) FindAll(ctx context.Context) ([]entity.Post, error) {
	var posts []entity.Post
	err := r.db.WithContext(ctx).Preload("Targets").Order("created_at DESC").Find(&posts).Error
	return posts, err
}

func (r *announcementRepository) Create(ctx context.Context, post *entity.Post) error {
	return r.db.WithContext(ctx).Omit("Author").Create(post).Error
}

// Update saves the post columns and replaces its targets in one transaction.
func (r *announcementRepository) Update(ctx context.Context, post *entity.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(post).
			Select("title", "content", "category", "visibility", "is_pinned", "image_url").
			Updates(post).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&entity.PostTarget{}).Error; err != nil {
			return err
		}
		if len(post.Targets) == 0 {
			return nil
		}
		for i := range post.Targets {
			post.Targets[i].PostID = post.ID
		}
		return tx.Create(&post.Targets).Error
	})
}

func (r *announcementRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.Post{}).Error
}

func (r *announcementRepository) SetPinned(ctx context.Context, id uuid.UUID, pinned bool) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entity.Post{}).Where("id = ?", id).Update("is_pinned", pinned)
	return res.RowsAffected > 0, res.Error
}

func (r *announcementRepository) Stats(ctx context.Context, postIDs []uuid.UUID, viewerID *uuid.UUID) (map[uuid.UUID]PostStats, error) {
	stats := make(map[uuid.UUID]PostStats, len(postIDs))
	if len(postIDs) == 0 {
		return stats, nil
	}
	db := r.db.WithContext(ctx)

	var reactionRows []struct {
		PostID   uuid.UUID
		Likes    int64
		Dislikes int64
	}
	if err := db.Raw(`
		SELECT post_id,
		       COUNT(*) FILTER (WHERE kind = ?) AS likes,
		       COUNT(*) FILTER (WHERE kind = ?) AS dislikes
		FROM reactions
		WHERE post_id IN ?
		GROUP BY post_id`, entity.ReactionLike, entity.ReactionDislike, postIDs).
		Scan(&reactionRows).Error; err != nil {
		return nil, err
	}
	for _, row := range reactionRows {
		s := stats[row.PostID]
		s.Likes, s.Dislikes = row.Likes, row.Dislikes
		stats[row.PostID] = s
	}

	var commentRows []struct {
		PostID uuid.UUID
		Count  int64
	}
	if err := db.Raw(`SELECT post_id, COUNT(*) AS count FROM comments WHERE post_id IN ? GROUP BY post_id`, postIDs).
		Scan(&commentRows).Error; err != nil {
		return nil, err
	}
	for _, row := range commentRows {
		s := stats[row.PostID]
		s.Comments = row.Count
		stats[row.PostID] = s
	}

	if viewerID == nil {
		return stats, nil
	}
	var own []entity.Reaction
	if err := db.Where("user_id = ? AND post_id IN ?", *viewerID, postIDs).Find(&own).Error; err != nil {
		return nil, err
	}
	for _, re := range own {
		s := stats[re.PostID]
		kind := re.Kind
		s.UserReaction = &kind
		stats[re.PostID] = s
	}
	return stats, nil
}

func (r *announcementRepository) Reactions(ctx context.Context, postID uuid.UUID) ([]entity.Reaction, error) {
	var reactions []entity.Reaction
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&reactions).Error
	return reactions, err
}
