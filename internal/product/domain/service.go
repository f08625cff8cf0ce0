package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error

	// Get returns an active product with related products from its category.
	Get(ctx context.Context, id string) (*DetailResponse, error)
	// GetAny returns a product regardless of its active flag.
	GetAny(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	ListFeatured(ctx context.Context, limit int) ([]Response, error)
	ListOnSale(ctx context.Context, limit int) ([]Response, error)
	ListLowStock(ctx context.Context, limit int) ([]Response, error)

	FindAvailable(ctx context.Context, id int64) (*Product, error)
}

type ListRequest struct {
	IncludeInactive bool
	Category        string
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Featured        *bool
	OnSale          *bool
	SortBy          string
	OrderBy         string
	Page            int
	Limit           int
}

type CreateRequest struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	OriginalPrice  *decimal.Decimal `json:"original_price"`
	Category       string           `json:"category"`
	Subcategory    string           `json:"subcategory"`
	Brand          string           `json:"brand"`
	SKU            string           `json:"sku"`
	Images         []Image          `json:"images"`
	Stock          int              `json:"stock"`
	MinStock       *int             `json:"min_stock"`
	IsActive       *bool            `json:"is_active"`
	IsFeatured     bool             `json:"is_featured"`
	OnSale         bool             `json:"on_sale"`
	SalePercentage int              `json:"sale_percentage"`
	Tags           []string         `json:"tags"`
	Specifications []Specification  `json:"specifications"`
}

// UpdateRequest carries a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Price          *decimal.Decimal `json:"price"`
	OriginalPrice  *decimal.Decimal `json:"original_price"`
	Category       *string          `json:"category"`
	Subcategory    *string          `json:"subcategory"`
	Brand          *string          `json:"brand"`
	SKU            *string          `json:"sku"`
	Images         *[]Image         `json:"images"`
	Stock          *int             `json:"stock"`
	MinStock       *int             `json:"min_stock"`
	IsActive       *bool            `json:"is_active"`
	IsFeatured     *bool            `json:"is_featured"`
	OnSale         *bool            `json:"on_sale"`
	SalePercentage *int             `json:"sale_percentage"`
	Tags           *[]string        `json:"tags"`
	Specifications *[]Specification `json:"specifications"`
}

type Response struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Slug           string           `json:"slug"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	OriginalPrice  *decimal.Decimal `json:"original_price,omitempty"`
	Category       Category         `json:"category"`
	Subcategory    string           `json:"subcategory,omitempty"`
	Brand          string           `json:"brand,omitempty"`
	SKU            string           `json:"sku"`
	Images         []Image          `json:"images"`
	Stock          int              `json:"stock"`
	MinStock       int              `json:"min_stock"`
	LowStock       bool             `json:"low_stock"`
	IsActive       bool             `json:"is_active"`
	IsFeatured     bool             `json:"is_featured"`
	OnSale         bool             `json:"on_sale"`
	SalePercentage int              `json:"sale_percentage"`
	Tags           []string         `json:"tags"`
	Specifications []Specification  `json:"specifications"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type DetailResponse struct {
	Product Response   `json:"product"`
	Related []Response `json:"related"`
}

type ListResponse struct {
	Products   []Response          `json:"products"`
	Categories []Category          `json:"categories"`
	Pagination pagination.PageInfo `json:"pagination"`
}

var (
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidDescription    = errors.New("invalid_description")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrInvalidOriginalPrice  = errors.New("invalid_original_price")
	ErrInvalidCategory       = errors.New("invalid_category")
	ErrInvalidSKU            = errors.New("invalid_sku")
	ErrInvalidStock          = errors.New("invalid_stock")
	ErrInvalidMinStock       = errors.New("invalid_min_stock")
	ErrInvalidSalePercentage = errors.New("invalid_sale_percentage")
	ErrInvalidID             = errors.New("invalid_id")
	ErrSKUExists             = errors.New("sku_exists")
	ErrNotFound              = errors.New("not_found")
)
