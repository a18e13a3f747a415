// Package pagination implements offset/limit paging over gorm queries.
package pagination

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
	// MaxPage keeps Offset within int32 for every driver.
	MaxPage = math.MaxInt32 / MaxPerPage
)

// Params is a validated page request.
type Params struct {
	Page    int
	PerPage int
}

// Meta describes the page that was returned.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Pages   int   `json:"pages"`
	HasPrev bool  `json:"has_prev"`
	HasNext bool  `json:"has_next"`
}

// NewParams clamps page to 1..MaxPage and perPage to 1..MaxPerPage.
func NewParams(page, perPage int) Params {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if perPage < 1 {
		perPage = 1
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}
	return Params{Page: page, PerPage: perPage}
}

// FromQuery reads page and per_page from the request, falling back to defaultPerPage.
func FromQuery(c *gin.Context, defaultPerPage int) Params {
	page := 1
	perPage := defaultPerPage
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("per_page")); err == nil {
		perPage = v
	}
	return NewParams(page, perPage)
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

func NewMeta(total int64, page, perPage int) Meta {
	pages := 0
	if perPage > 0 {
		pages = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return Meta{
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Pages:   pages,
		HasPrev: page > 1,
		HasNext: int64(page)*int64(perPage) < total,
	}
}

// Paginate counts the rows matched by query and loads the requested page.
// scopes (ordering, preloads) apply to the page load only.
func Paginate[T any](query *gorm.DB, p Params, scopes ...func(*gorm.DB) *gorm.DB) ([]T, Meta, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Model(new(T)).Count(&total).Error; err != nil {
		return nil, Meta{}, err
	}

	items := make([]T, 0, p.PerPage)
	page := query.Session(&gorm.Session{}).Scopes(scopes...)
	if err := page.Offset(p.Offset()).Limit(p.PerPage).Find(&items).Error; err != nil {
		return nil, Meta{}, err
	}
	return items, NewMeta(total, p.Page, p.PerPage), nil
}

// OrderBy returns a scope applying an ORDER BY clause.
func OrderBy(order string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB { return db.Order(order) }
}

// Preload returns a scope preloading the named associations.
func Preload(assocs ...string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, a := range assocs {
			db = db.Preload(a)
		}
		return db
	}
}
