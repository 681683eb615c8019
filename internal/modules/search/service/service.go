package service

import (
	"context"
	"encoding/json"
	"html"
	"strings"

	"anoa.com/schoolportal/internal/entity"
	"anoa.com/schoolportal/internal/policy"
	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const announcementsIndex = "announcements"

// AnnouncementIndex mirrors announcements into Meilisearch. Search results are
// candidate ids only; callers re-apply the visibility predicate in SQL.
type AnnouncementIndex interface {
	IndexAnnouncement(ctx context.Context, post *entity.Post) error
	DeleteAnnouncement(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string, scope policy.Scope, limit int) ([]uuid.UUID, error)
	Reindex(ctx context.Context, posts []entity.Post) error
}

type meiliSearchService struct {
	client    meilisearch.ServiceManager
	sanitizer *bluemonday.Policy
	log       *zap.Logger
}

// NewMeiliSearchService returns nil when host is empty so callers can fall back to SQL search.
func NewMeiliSearchService(host, apiKey string, log *zap.Logger) AnnouncementIndex {
	if host == "" {
		return nil
	}
	if !strings.HasPrefix(host, "http") {
		host = "http://" + host + ":7700"
	}
	s := &meiliSearchService{
		client:    meilisearch.New(host, meilisearch.WithAPIKey(apiKey)),
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
	s.initIndex()
	return s
}

func (s *meiliSearchService) initIndex() {
	filterable := []any{"visibility", "audience", "category"}
	if _, err := s.client.Index(announcementsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		s.log.Warn("meilisearch filterable attributes", zap.Error(err))
	}

	sortable := []string{"created_at", "is_pinned"}
	if _, err := s.client.Index(announcementsIndex).UpdateSortableAttributes(&sortable); err != nil {
		s.log.Warn("meilisearch sortable attributes", zap.Error(err))
	}
}

type announcementDoc struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Visibility string   `json:"visibility"`
	Audience   []string `json:"audience"`
	IsPinned   bool     `json:"is_pinned"`
	CreatedAt  int64    `json:"created_at"`
}

func (s *meiliSearchService) toDoc(p *entity.Post) announcementDoc {
	return announcementDoc{
		ID:         p.ID.String(),
		Title:      p.Title,
		Content:    cleanContentForIndex(s.sanitizer, p.Content),
		Category:   p.Category,
		Visibility: p.Visibility,
		Audience:   AudienceTerms(p.Targets),
		IsPinned:   p.IsPinned,
		CreatedAt:  p.CreatedAt.Unix(),
	}
}

func (s *meiliSearchService) IndexAnnouncement(_ context.Context, post *entity.Post) error {
	pk := "id"
	_, err := s.client.Index(announcementsIndex).AddDocuments([]announcementDoc{s.toDoc(post)}, &pk)
	return err
}

func (s *meiliSearchService) DeleteAnnouncement(_ context.Context, id uuid.UUID) error {
	_, err := s.client.Index(announcementsIndex).DeleteDocument(id.String())
	return err
}

func (s *meiliSearchService) Reindex(_ context.Context, posts []entity.Post) error {
	// Upsert only: ids the index still holds for deleted posts are dropped by the SQL re-check.
	idx := s.client.Index(announcementsIndex)
	if len(posts) == 0 {
		return nil
	}
	docs := make([]announcementDoc, 0, len(posts))
	for i := range posts {
		docs = append(docs, s.toDoc(&posts[i]))
	}
	pk := "id"
	_, err := idx.AddDocuments(docs, &pk)
	return err
}

func (s *meiliSearchService) Search(_ context.Context, query string, scope policy.Scope, limit int) ([]uuid.UUID, error) {
	req := &meilisearch.SearchRequest{
		Limit:                int64(limit),
		AttributesToRetrieve: []string{"id"},
	}
	if filter := FilterFor(scope); filter != "" {
		req.Filter = filter
	}

	resp, err := s.client.Index(announcementsIndex).Search(query, req)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(resp.Hits)
	if err != nil {
		return nil, err
	}
	var hits []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &hits); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(hits))
	for _, h := range hits {
		if id, err := uuid.Parse(h.ID); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// AudienceTerms encodes post targets as filterable terms; untargeted posts carry "all".
func AudienceTerms(targets []entity.PostTarget) []string {
	if len(targets) == 0 {
		return []string{"all"}
	}
	terms := make([]string, 0, len(targets))
	for _, t := range targets {
		terms = append(terms, t.Kind+":"+t.Value)
	}
	return terms
}

// FilterFor translates a visibility scope into a Meilisearch filter expression.
func FilterFor(scope policy.Scope) string {
	var clauses []string
	if scope.Visibilities != nil {
		vals := make([]string, 0, len(scope.Visibilities))
		for _, v := range scope.Visibilities {
			vals = append(vals, quote(string(v)))
		}
		clauses = append(clauses, "visibility IN ["+strings.Join(vals, ", ")+"]")
	}
	if scope.RestrictAudience {
		vals := []string{quote("all")}
		for _, g := range scope.Grades {
			vals = append(vals, quote(string(policy.TargetGrade)+":"+g))
		}
		for _, c := range scope.ClassIDs {
			vals = append(vals, quote(string(policy.TargetClass)+":"+c))
		}
		clauses = append(clauses, "audience IN ["+strings.Join(vals, ", ")+"]")
	}
	return strings.Join(clauses, " AND ")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}

func cleanContentForIndex(p *bluemonday.Policy, content string) string {
	for _, tag := range []string{"</p>", "<br>", "<br/>", "</div>", "</li>"} {
		content = strings.ReplaceAll(content, tag, " ")
	}
	text := html.UnescapeString(p.Sanitize(content))
	return strings.Join(strings.Fields(text), " ")
}
