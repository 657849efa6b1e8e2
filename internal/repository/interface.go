package repository

import (
	"context"

	"gorm.io/gorm"
)

// BaseRepository is the shared repository surface.
type BaseRepository interface {
	GetDB() *gorm.DB
	WithTx(tx *gorm.DB) BaseRepository
}

// Pagination carries paging parameters and the total count.
type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

// NewPagination normalizes paging parameters.
func NewPagination(page, pageSize int) *Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 500 {
		pageSize = 500
	}
	return &Pagination{
		Page:     page,
		PageSize: pageSize,
	}
}

// Offset returns the row offset for the current page.
func (p *Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Paginate is a gorm scope applying the pagination.
func Paginate(p *Pagination) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(p.Offset()).Limit(p.PageSize)
	}
}

// BaseRepo is the embedded repository base.
type BaseRepo struct {
	db *gorm.DB
}

// NewBaseRepo wraps a gorm handle.
func NewBaseRepo(db *gorm.DB) *BaseRepo {
	return &BaseRepo{db: db}
}

// GetDB returns the underlying handle.
func (r *BaseRepo) GetDB() *gorm.DB {
	return r.db
}

// WithTx rebinds the repo to a transaction.
func (r *BaseRepo) WithTx(tx *gorm.DB) *BaseRepo {
	return &BaseRepo{db: tx}
}

// Transaction runs fn in a transaction.
func (r *BaseRepo) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
