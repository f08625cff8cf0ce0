package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, product *Product) error
	Update(ctx context.Context, db *gorm.DB, product *Product) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []int64) ([]Product, error)
	FindBySKU(ctx context.Context, db *gorm.DB, sku string) (*Product, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Product, int64, error)
	ListCategories(ctx context.Context, db *gorm.DB) ([]Category, error)
	ListRelated(ctx context.Context, db *gorm.DB, category Category, excludeID int64, limit int) ([]Product, error)
	ListLowStock(ctx context.Context, db *gorm.DB, limit int) ([]Product, error)
	Count(ctx context.Context, db *gorm.DB, activeOnly bool) (int64, error)

	// DecrementStock subtracts qty only when the product is active and has at
	// least qty units. It reports false when no row qualified.
	DecrementStock(ctx context.Context, db *gorm.DB, id int64, qty int, now time.Time) (bool, error)
	Deactivate(ctx context.Context, db *gorm.DB, id int64, now time.Time) (bool, error)
}

// ListFilter narrows catalog listings. Zero values mean "no filter".
type ListFilter struct {
	IncludeInactive bool
	Category        Category
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Featured        *bool
	OnSale          *bool
	SortBy          string
	OrderBy         string
	Offset          int
	Limit           int
}
