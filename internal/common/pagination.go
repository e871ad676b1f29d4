package common

import (
	"net/http"
	"strconv"
	"strings"
)

// ListQuery captures the list-endpoint query parameters shared by the
// inventory endpoints: page/pageSize plus free-text search and ordering.
type ListQuery struct {
	Page     int
	PageSize int
	Search   string
	OrderBy  string
	OrderDir string

	// Paged reports whether the caller asked for pagination at all. Without
	// page parameters the endpoints return a bare array.
	Paged bool
}

// ParseListQuery extracts list parameters from the request.
func ParseListQuery(r *http.Request, defaultPageSize, maxPageSize int) ListQuery {
	q := r.URL.Query()
	lq := ListQuery{
		Page:     1,
		PageSize: defaultPageSize,
		Search:   strings.TrimSpace(q.Get("q")),
		OrderBy:  strings.TrimSpace(q.Get("orderBy")),
		OrderDir: strings.ToLower(strings.TrimSpace(q.Get("orderDir"))),
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		lq.Page = p
		lq.Paged = true
	}
	if ps, err := strconv.Atoi(q.Get("pageSize")); err == nil && ps > 0 {
		lq.PageSize = ps
		lq.Paged = true
	}
	if maxPageSize > 0 && lq.PageSize > maxPageSize {
		lq.PageSize = maxPageSize
	}
	if lq.OrderDir != "desc" {
		lq.OrderDir = "asc"
	}
	return lq
}

// Offset returns the row offset for the current page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// PagedResult is the envelope returned when pagination was requested.
type PagedResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}
