// Package pagination reads limit/offset query parameters and wraps list
// responses.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type Params struct {
	Limit  int
	Offset int
}

// FromContext reads limit and offset. A page parameter (1-based) is honoured
// when offset is absent. Out-of-range values are clamped.
func FromContext(c echo.Context) Params {
	p := Params{Limit: atoi(c.QueryParam("limit"))}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if raw := c.QueryParam("offset"); raw != "" {
		p.Offset = atoi(raw)
	} else if page := atoi(c.QueryParam("page")); page > 1 {
		p.Offset = (page - 1) * p.Limit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// Next returns the params for the following page, or false on the last one.
func (p Params) Next(total int) (Params, bool) {
	if p.Offset+p.Limit >= total {
		return p, false
	}
	return Params{Limit: p.Limit, Offset: p.Offset + p.Limit}, true
}

// Response is a page of results.
type Response[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

// NewResponse never encodes a nil page as null.
func NewResponse[T any](data []T, total int, p Params) Response[T] {
	if data == nil {
		data = []T{}
	}
	_, more := p.Next(total)
	return Response[T]{Data: data, Total: total, Limit: p.Limit, Offset: p.Offset, HasMore: more}
}
