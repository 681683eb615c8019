package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/modules/announcement/dto"
	annRepo "anoa.com/schoolportal/internal/modules/announcement/repository"
	searchService "anoa.com/schoolportal/internal/modules/search/service"
	"anoa.com/schoolportal/internal/policy"
	"anoa.com/schoolportal/pkg/apperror"
	commonDto "anoa.com/schoolportal/pkg/dto"
	"anoa.com/schoolportal/pkg/metrics"
	"anoa.com/schoolportal/pkg/storage"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

// ChildrenSource lists the guardian links of a parent.
type ChildrenSource interface {
	ListByParent(ctx context.Context, parentID uuid.UUID, approvedOnly bool) ([]entity.Student, error)
}

type ClassFinder interface {
	FindClassByID(ctx context.Context, id uuid.UUID) (*entity.Class, error)
}

type AnnouncementService interface {
	ListVisibleAnnouncements(ctx context.Context, actor *policy.Actor, filter dto.ListFilter) (*commonDto.Paginated[dto.AnnouncementResponse], error)
	Feed(ctx context.Context, actor *policy.Actor) ([]dto.AnnouncementResponse, error)
	Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.AnnouncementResponse, error)
	Search(ctx context.Context, actor *policy.Actor, query dto.SearchQuery) ([]dto.AnnouncementResponse, error)
	Create(ctx context.Context, actor *policy.Actor, input dto.AnnouncementInput) (*dto.AnnouncementResponse, error)
	Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.AnnouncementInput) (*dto.AnnouncementResponse, error)
	Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error
	SetPinned(ctx context.Context, actor *policy.Actor, id uuid.UUID, pinned bool) error
	UploadImage(ctx context.Context, actor *policy.Actor, id uuid.UUID, file commonDto.UploadFile) (*dto.AnnouncementResponse, error)
	ReactionDetails(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.ReactionDetails, error)

	// Viewer resolves the audience of the actor's approved children.
	Viewer(ctx context.Context, actor *policy.Actor) (policy.Viewer, error)
	// Access loads an announcement and authorizes action on it: NotFound first, then the rule.
	Access(ctx context.Context, actor *policy.Actor, action policy.Action, id uuid.UUID) (*entity.Post, error)
	Reindex(ctx context.Context) (int, error)
}

type announcementService struct {
	repo      annRepo.AnnouncementRepository
	children  ChildrenSource
	classes   ClassFinder
	index     searchService.AnnouncementIndex
	images    storage.ImageStorage
	sanitizer *bluemonday.Policy
	log       *zap.Logger
}

func NewAnnouncementService(
	repo annRepo.AnnouncementRepository,
	children ChildrenSource,
	classes ClassFinder,
	index searchService.AnnouncementIndex,
	images storage.ImageStorage,
	log *zap.Logger,
) AnnouncementService {
	if log == nil {
		log = zap.NewNop()
	}
	return &announcementService{
		repo:      repo,
		children:  children,
		classes:   classes,
		index:     index,
		images:    images,
		sanitizer: bluemonday.UGCPolicy(),
		log:       log,
	}
}

func (s *announcementService) Viewer(ctx context.Context, actor *policy.Actor) (policy.Viewer, error) {
	v := policy.Viewer{Actor: actor}
	if !actor.IsParent() {
		return v, nil
	}
	links, err := s.children.ListByParent(ctx, actor.ID, true)
	if err != nil {
		return v, fmt.Errorf("load children: %w", err)
	}
	kids := make([]policy.Child, 0, len(links))
	for i := range links {
		kids = append(kids, links[i].Child())
	}
	v.Audience = policy.NewAudience(kids)
	return v, nil
}

func (s *announcementService) Access(ctx context.Context, actor *policy.Actor, action policy.Action, id uuid.UUID) (*entity.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	if post == nil {
		return nil, policy.Authorize(actor, action, policy.NotFound())
	}
	viewer, err := s.Viewer(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(actor, action, policy.OfAnnouncement(post.View(), viewer.Audience)); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *announcementService) list(ctx context.Context, actor *policy.Actor, filter annRepo.ListFilter) ([]dto.AnnouncementResponse, int64, error) {
	if err := policy.Authorize(actor, policy.ActionViewAnnouncements, nil); err != nil {
		return nil, 0, err
	}
	viewer, err := s.Viewer(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	posts, total, err := s.repo.ListVisible(ctx, policy.ScopeFor(viewer), filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	out, err := s.toResponses(ctx, actor, posts)
	return out, total, err
}

func (s *announcementService) ListVisibleAnnouncements(ctx context.Context, actor *policy.Actor, filter dto.ListFilter) (*commonDto.Paginated[dto.AnnouncementResponse], error) {
	limit, offset := filter.Normalize()
	items, total, err := s.list(ctx, actor, annRepo.ListFilter{
		Category: strings.TrimSpace(filter.Category),
		Search:   filter.Search,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, err
	}
	return &commonDto.Paginated[dto.AnnouncementResponse]{
		Data: items,
		Meta: commonDto.NewMeta(filter.PageQuery, total),
	}, nil
}

func (s *announcementService) Feed(ctx context.Context, actor *policy.Actor) ([]dto.AnnouncementResponse, error) {
	items, _, err := s.list(ctx, actor, annRepo.ListFilter{Limit: dto.FeedLimit})
	return items, err
}

func (s *announcementService) Get(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.AnnouncementResponse, error) {
	post, err := s.Access(ctx, actor, policy.ActionViewAnnouncements, id)
	if err != nil {
		return nil, err
	}
	out, err := s.toResponses(ctx, actor, []entity.Post{*post})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

// Search asks the index for candidates and re-applies the visibility predicate in SQL,
// keeping the index's relevance order. Without a usable index it falls back to the
// SQL substring search in feed order.
func (s *announcementService) Search(ctx context.Context, actor *policy.Actor, query dto.SearchQuery) ([]dto.AnnouncementResponse, error) {
	if err := policy.Authorize(actor, policy.ActionViewAnnouncements, nil); err != nil {
		return nil, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	viewer, err := s.Viewer(ctx, actor)
	if err != nil {
		return nil, err
	}
	scope := policy.ScopeFor(viewer)

	filter := annRepo.ListFilter{Search: query.Query, Limit: limit}
	if s.index != nil {
		ids, err := s.index.Search(ctx, query.Query, scope, limit)
		if err == nil {
			filter = annRepo.ListFilter{IDs: ids, Limit: limit}
		} else {
			metrics.SideEffectFailed("search")
			s.log.Warn("search index unavailable, using database search", zap.Error(err))
		}
	}

	posts, _, err := s.repo.ListVisible(ctx, scope, filter)
	if err != nil {
		return nil, fmt.Errorf("search announcements: %w", err)
	}
	if filter.IDs != nil {
		posts = inRankOrder(posts, filter.IDs)
	}
	return s.toResponses(ctx, actor, posts)
}

// inRankOrder sorts posts by their position in ranked.
func inRankOrder(posts []entity.Post, ranked []uuid.UUID) []entity.Post {
	rank := make(map[uuid.UUID]int, len(ranked))
	for i, id := range ranked {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}
	slices.SortStableFunc(posts, func(a, b entity.Post) int { return cmp.Compare(rank[a.ID], rank[b.ID]) })
	return posts
}

func (s *announcementService) Create(ctx context.Context, actor *policy.Actor, input dto.AnnouncementInput) (*dto.AnnouncementResponse, error) {
	if err := policy.Authorize(actor, policy.ActionManageAnnouncements, nil); err != nil {
		return nil, err
	}
	post := &entity.Post{UserID: actor.ID}
	if err := s.apply(ctx, post, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create announcement: %w", err)
	}
	s.indexBestEffort(ctx, post)
	return s.Get(ctx, actor, post.ID)
}

func (s *announcementService) Update(ctx context.Context, actor *policy.Actor, id uuid.UUID, input dto.AnnouncementInput) (*dto.AnnouncementResponse, error) {
	post, err := s.Access(ctx, actor, policy.ActionManageAnnouncements, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, post, input); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, fmt.Errorf("update announcement: %w", err)
	}
	s.indexBestEffort(ctx, post)
	return s.Get(ctx, actor, post.ID)
}

func (s *announcementService) Delete(ctx context.Context, actor *policy.Actor, id uuid.UUID) error {
	post, err := s.Access(ctx, actor, policy.ActionManageAnnouncements, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, post.ID); err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if s.index != nil {
		if err := s.index.DeleteAnnouncement(ctx, post.ID); err != nil {
			metrics.SideEffectFailed("search")
			s.log.Warn("remove announcement from index", zap.String("id", post.ID.String()), zap.Error(err))
		}
	}
	if post.ImageURL != nil {
		s.deleteImageBestEffort(ctx, *post.ImageURL)
	}
	return nil
}

func (s *announcementService) SetPinned(ctx context.Context, actor *policy.Actor, id uuid.UUID, pinned bool) error {
	post, err := s.Access(ctx, actor, policy.ActionManageAnnouncements, id)
	if err != nil {
		return err
	}
	if _, err := s.repo.SetPinned(ctx, post.ID, pinned); err != nil {
		return fmt.Errorf("pin announcement: %w", err)
	}
	post.IsPinned = pinned
	s.indexBestEffort(ctx, post)
	return nil
}

func (s *announcementService) UploadImage(ctx context.Context, actor *policy.Actor, id uuid.UUID, file commonDto.UploadFile) (*dto.AnnouncementResponse, error) {
	post, err := s.Access(ctx, actor, policy.ActionManageAnnouncements, id)
	if err != nil {
		return nil, err
	}
	if s.images == nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrDependency, storage.ErrNotConfigured)
	}
	if !storage.AllowedImage(file.FileName) {
		return nil, fmt.Errorf("image must be jpg, png, gif or webp: %w", apperror.ErrInvalidInput)
	}

	url, err := s.images.UploadImage(ctx, file.Reader, file.FileName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrDependency, err)
	}
	previous := post.ImageURL
	post.ImageURL = &url
	if err := s.repo.Update(ctx, post); err != nil {
		s.deleteImageBestEffort(ctx, url)
		return nil, fmt.Errorf("save image url: %w", err)
	}
	if previous != nil {
		s.deleteImageBestEffort(ctx, *previous)
	}
	return s.Get(ctx, actor, post.ID)
}

func (s *announcementService) ReactionDetails(ctx context.Context, actor *policy.Actor, id uuid.UUID) (*dto.ReactionDetails, error) {
	post, err := s.Access(ctx, actor, policy.ActionManageAnnouncements, id)
	if err != nil {
		return nil, err
	}
	reactions, err := s.repo.Reactions(ctx, post.ID)
	if err != nil {
		return nil, fmt.Errorf("load reactions: %w", err)
	}

	out := &dto.ReactionDetails{AnnouncementID: post.ID, Likes: []dto.Reactor{}, Dislikes: []dto.Reactor{}}
	for _, re := range reactions {
		r := dto.Reactor{
			UserID:    re.UserID,
			Name:      re.User.Name,
			Role:      re.User.Role,
			Email:     re.User.Email,
			ReactedAt: commonDto.FormatTime(re.UpdatedAt),
		}
		if re.Kind == entity.ReactionLike {
			out.Likes = append(out.Likes, r)
		} else {
			out.Dislikes = append(out.Dislikes, r)
		}
	}
	out.TotalLikes, out.TotalDislikes = len(out.Likes), len(out.Dislikes)
	return out, nil
}

func (s *announcementService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}
	posts, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load announcements: %w", err)
	}
	if err := s.index.Reindex(ctx, posts); err != nil {
		return 0, fmt.Errorf("%w: reindex: %v", apperror.ErrDependency, err)
	}
	return len(posts), nil
}

// apply copies validated input onto the post.
func (s *announcementService) apply(ctx context.Context, post *entity.Post, input dto.AnnouncementInput) error {
	title := strings.TrimSpace(input.Title)
	content := strings.TrimSpace(s.sanitizer.Sanitize(input.Content))
	if title == "" || content == "" {
		return fmt.Errorf("title and content are required: %w", apperror.ErrInvalidInput)
	}
	vis := policy.Visibility(input.Visibility)
	if !vis.Valid() {
		return fmt.Errorf("visibility must be all, teachers or parents: %w", apperror.ErrInvalidInput)
	}
	targets, err := s.targets(ctx, input.Targets)
	if err != nil {
		return err
	}

	category := strings.ToLower(strings.TrimSpace(input.Category))
	if category == "" || category == "all" {
		category = entity.DefaultCategory
	}

	post.Title = title
	post.Content = content
	post.Category = category
	post.Visibility = string(vis)
	post.IsPinned = input.IsPinned
	post.Targets = targets
	return nil
}

func (s *announcementService) targets(ctx context.Context, in []dto.TargetInput) ([]entity.PostTarget, error) {
	seen := make(map[entity.PostTarget]struct{}, len(in))
	out := make([]entity.PostTarget, 0, len(in))
	for _, t := range in {
		value := strings.TrimSpace(t.Value)
		switch policy.TargetKind(t.Kind) {
		case policy.TargetGrade:
			if !entity.ValidGrade(value) {
				return nil, fmt.Errorf("unknown grade %q: %w", value, apperror.ErrInvalidInput)
			}
		case policy.TargetClass:
			id, err := uuid.Parse(value)
			if err != nil {
				return nil, fmt.Errorf("class target must be a class id: %w", apperror.ErrInvalidInput)
			}
			class, err := s.classes.FindClassByID(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("find class: %w", err)
			}
			if class == nil {
				return nil, fmt.Errorf("unknown class %s: %w", value, apperror.ErrInvalidInput)
			}
			value = id.String()
		default:
			return nil, fmt.Errorf("target kind must be grade or class: %w", apperror.ErrInvalidInput)
		}
		pt := entity.PostTarget{Kind: t.Kind, Value: value}
		if _, dup := seen[pt]; dup {
			continue
		}
		seen[pt] = struct{}{}
		out = append(out, pt)
	}
	return out, nil
}

func (s *announcementService) toResponses(ctx context.Context, actor *policy.Actor, posts []entity.Post) ([]dto.AnnouncementResponse, error) {
	out := make([]dto.AnnouncementResponse, 0, len(posts))
	if len(posts) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	var viewerID *uuid.UUID
	if actor != nil {
		viewerID = &actor.ID
	}
	stats, err := s.repo.Stats(ctx, ids, viewerID)
	if err != nil {
		return nil, fmt.Errorf("announcement stats: %w", err)
	}
	for _, p := range posts {
		out = append(out, toResponse(p, stats[p.ID]))
	}
	return out, nil
}

func toResponse(p entity.Post, st annRepo.PostStats) dto.AnnouncementResponse {
	targets := make([]dto.TargetResponse, 0, len(p.Targets))
	for _, t := range p.Targets {
		targets = append(targets, dto.TargetResponse{Kind: t.Kind, Value: t.Value})
	}
	return dto.AnnouncementResponse{
		ID:         p.ID,
		Title:      p.Title,
		Content:    p.Content,
		Category:   p.Category,
		Visibility: p.Visibility,
		IsPinned:   p.IsPinned,
		ImageURL:   p.ImageURL,
		Author: commonDto.AuthorResponse{
			ID:   p.Author.ID,
			Name: p.Author.Name,
			Role: p.Author.Role,
		},
		Targets:      targets,
		CommentCount: st.Comments,
		LikeCount:    st.Likes,
		DislikeCount: st.Dislikes,
		UserReaction: st.UserReaction,
		CreatedAt:    commonDto.FormatTime(p.CreatedAt),
		UpdatedAt:    commonDto.FormatTime(p.UpdatedAt),
	}
}

func (s *announcementService) indexBestEffort(ctx context.Context, post *entity.Post) {
	if s.index == nil {
		return
	}
	if err := s.index.IndexAnnouncement(ctx, post); err != nil {
		metrics.SideEffectFailed("search")
		s.log.Warn("index announcement", zap.String("id", post.ID.String()), zap.Error(err))
	}
}

func (s *announcementService) deleteImageBestEffort(ctx context.Context, url string) {
	if s.images == nil {
		return
	}
	if err := s.images.DeleteImage(ctx, url); err != nil {
		metrics.SideEffectFailed("image")
		s.log.Warn("delete announcement image", zap.String("url", url), zap.Error(err))
	}
}
