package dto

import (
	"io"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type AuthorResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role string    `json:"role"`
}

// PageQuery is embedded by list filters bound from the query string.
type PageQuery struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// Normalize fills in defaults and returns limit and offset.
func (p *PageQuery) Normalize() (limit, offset int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p.Limit, (p.Page - 1) * p.Limit
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalItems  int64 `json:"total_items"`
	Limit       int   `json:"limit"`
}

func NewMeta(p PageQuery, total int64) PaginationMeta {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PaginationMeta{CurrentPage: p.Page, TotalPages: pages, TotalItems: total, Limit: p.Limit}
}

type Paginated[T any] struct {
	Data []T            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// UploadFile is a multipart file handed from a handler to a service.
type UploadFile struct {
	Reader   io.Reader
	FileName string
}
