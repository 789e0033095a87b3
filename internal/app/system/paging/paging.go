// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
)

// PageSize is the default number of rows returned by paged list endpoints.
const PageSize = 50

// MaxPageSize caps a caller-supplied "limit".
const MaxPageSize = 200

// Page is a parsed offset page request.
type Page struct {
	Start int // 1-based index of the first row
	Size  int
}

// Offset is the number of rows to skip.
func (p Page) Offset() int64 { return int64(p.Start - 1) }

// LimitPlusOne returns Size+1 for look-ahead pagination (fetch one extra
// row to detect hasNext).
func (p Page) LimitPlusOne() int64 { return int64(p.Size + 1) }

// Parse reads the human-friendly "start" (1-based) and "limit" query
// parameters. Missing or invalid values fall back to 1 and PageSize; limit
// is capped at MaxPageSize.
func Parse(r *http.Request) Page {
	p := Page{Start: 1, Size: PageSize}
	if n, err := strconv.Atoi(query.Get(r, "start")); err == nil && n >= 1 {
		p.Start = n
	}
	if n, err := strconv.Atoi(query.Get(r, "limit")); err == nil && n >= 1 {
		p.Size = min(n, MaxPageSize)
	}
	return p
}

// Result holds the output of Trim.
type Result struct {
	HasPrev bool `json:"has_prev"`
	HasNext bool `json:"has_next"`
}

// Trim cuts a slice fetched with LimitPlusOne down to the page size and
// reports whether neighbouring pages exist.
func Trim[T any](rows *[]T, p Page) Result {
	res := Result{HasPrev: p.Start > 1}
	if len(*rows) > p.Size {
		*rows = (*rows)[:p.Size]
		res.HasNext = true
	}
	return res
}

// Range holds computed display range values for a paginated list.
type Range struct {
	Start     int `json:"start"`      // 1-based start index (0 if no results)
	End       int `json:"end"`        // 1-based end index (0 if no results)
	PrevStart int `json:"prev_start"` // start value for the previous page
	NextStart int `json:"next_start"` // start value for the next page
}

// ComputeRange calculates display range values given the page and the
// number of rows shown.
func ComputeRange(p Page, shown int) Range {
	if shown == 0 {
		return Range{Start: 0, End: 0, PrevStart: 1, NextStart: 1}
	}

	prevStart := p.Start - p.Size
	if prevStart < 1 {
		prevStart = 1
	}

	return Range{
		Start:     p.Start,
		End:       p.Start + shown - 1,
		PrevStart: prevStart,
		NextStart: p.Start + shown,
	}
}
