package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationFromQuery(t *testing.T) {
	p := PaginationFromQuery(url.Values{"page": {"3"}, "pageSize": {"10"}})
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 10, p.PageSize)
	assert.Equal(t, 20, p.GetOffset())

	p = PaginationFromQuery(url.Values{"page": {"-1"}, "pageSize": {"x"}})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)

	p = PaginationFromQuery(url.Values{"pageSize": {"1000"}})
	assert.Equal(t, MaxPageSize, p.GetLimit())
}

func TestPagination_SetTotal(t *testing.T) {
	p := NewPagination(2, 10)
	p.SetTotal(25)

	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	p = NewPagination(1, 10)
	p.SetTotal(0)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNext)
}
