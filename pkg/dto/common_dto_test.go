package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageQuery_Normalize(t *testing.T) {
	p := PageQuery{}
	limit, offset := p.Normalize()
	assert.Equal(t, DefaultPageSize, limit)
	assert.Equal(t, 0, offset)

	p = PageQuery{Page: 3, Limit: 500}
	limit, offset = p.Normalize()
	assert.Equal(t, MaxPageSize, limit)
	assert.Equal(t, 200, offset)
}

func TestNewMeta_RoundsPagesUp(t *testing.T) {
	meta := NewMeta(PageQuery{Page: 1, Limit: 10}, 21)
	assert.Equal(t, 3, meta.TotalPages)
	assert.Equal(t, int64(21), meta.TotalItems)

	assert.Equal(t, 0, NewMeta(PageQuery{Page: 1, Limit: 10}, 0).TotalPages)
}
