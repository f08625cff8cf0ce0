package pagination

import "math"

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination is the page/limit query shared by list endpoints.
type Pagination struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// PageInfo is returned alongside every paginated listing.
type PageInfo struct {
	Current int   `json:"current"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
}

// Normalize clamps page and limit, using def when limit is unset.
func (p Pagination) Normalize(def int) Pagination {
	if def <= 0 {
		def = DefaultLimit
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p Pagination) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

func BuildPageInfo(p Pagination, total int64) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return PageInfo{
		Current: p.Page,
		Pages:   pages,
		Total:   total,
		Limit:   p.Limit,
	}
}
