package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination and filter parameters
type Params struct {
	Page   int
	Limit  int
	Offset int
	Search string
}

// Parse extracts page, limit and search from the query string.
// Out-of-range values fall back to the defaults instead of failing the request.
func Parse(c *gin.Context) Params {
	return New(c.Query("page"), c.Query("limit"), c.Query("search"))
}

// New builds Params from raw query values
func New(rawPage, rawLimit, search string) Params {
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = DefaultPage
	}
	limit, err := strconv.Atoi(rawLimit)
	if err != nil || limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
		Search: strings.TrimSpace(search),
	}
}
