package pagination

import (
	"math"

	"github.com/sweetshop/sweetshop-backend/pkg/types"
)

const (
	// DefaultPage is used when the caller does not request a page.
	DefaultPage = 1
	// MaxPage bounds how deep a caller may page into a listing.
	MaxPage = 10000
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 10
	// MaxLimit caps how many rows a single page may return.
	MaxLimit = 100
)

// Params holds 1-indexed page inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize replaces missing values with defaults and clamps to the allowed range.
func (p Params) Normalize() Params {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

// Offset returns the number of rows to skip for the page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Pages returns ceil(total/limit), or zero when nothing matched.
func Pages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// Describe builds the response metadata for a page of total rows.
func Describe(p Params, total int64) types.Pagination {
	n := p.Normalize()
	return types.Pagination{
		Page:  n.Page,
		Limit: n.Limit,
		Total: total,
		Pages: Pages(total, n.Limit),
	}
}
