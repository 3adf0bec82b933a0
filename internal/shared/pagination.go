package shared

import (
	"math"
	"net/url"
	"strconv"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageRequest is the page/limit pair accepted by list endpoints.
type PageRequest struct {
	Page  int
	Limit int
}

// MaxPageLimit caps list endpoint page sizes.
const MaxPageLimit = 200

// PageFromQuery parses page and limit query parameters with defaults.
func PageFromQuery(q url.Values) PageRequest {
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return PageRequest{Page: page, Limit: limit}.Normalize()
}

// Normalize clamps values into the supported range.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the row offset for the page.
func (p PageRequest) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}
