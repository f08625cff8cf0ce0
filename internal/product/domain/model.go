package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Category string

const (
	CategoryDeskAccessories Category = "Desk Accessories"
	CategoryFilesFolders    Category = "Files & Folders"
	CategoryOfficeBasics    Category = "Office Basics"
	CategoryOthers          Category = "Others"
	CategoryPaperNotebooks  Category = "Paper & Notebooks"
	CategoryPensWriting     Category = "Pens & Writing"
	CategorySchoolSupplies  Category = "School Supplies"
)

var Categories = []Category{
	CategoryDeskAccessories,
	CategoryFilesFolders,
	CategoryOfficeBasics,
	CategoryOthers,
	CategoryPaperNotebooks,
	CategoryPensWriting,
	CategorySchoolSupplies,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Specification struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Product is a sellable catalog entry. Products are deactivated, never deleted.
type Product struct {
	ID             int64                              `json:"id" gorm:"primaryKey"`
	Name           string                             `json:"name" gorm:"type:text;not null"`
	Slug           string                             `json:"slug" gorm:"size:255;not null;index"`
	Description    string                             `json:"description" gorm:"type:text;not null"`
	Price          decimal.Decimal                    `json:"price" gorm:"type:float;precision:12;scale:2;not null"`
	OriginalPrice  *decimal.Decimal                   `json:"original_price,omitempty" gorm:"type:float;precision:12;scale:2"`
	Category       Category                           `json:"category" gorm:"size:64;not null;index"`
	Subcategory    string                             `json:"subcategory,omitempty" gorm:"size:128"`
	Brand          string                             `json:"brand,omitempty" gorm:"size:128"`
	SKU            string                             `json:"sku" gorm:"column:sku;size:64;not null;uniqueIndex:ux_products_sku"`
	Images         datatypes.JSONSlice[Image]         `json:"images"`
	Stock          int                                `json:"stock" gorm:"not null"`
	MinStock       int                                `json:"min_stock" gorm:"not null"`
	IsActive       bool                               `json:"is_active" gorm:"not null;index"`
	IsFeatured     bool                               `json:"is_featured" gorm:"not null"`
	OnSale         bool                               `json:"on_sale" gorm:"not null"`
	SalePercentage int                                `json:"sale_percentage" gorm:"not null"`
	Tags           datatypes.JSONSlice[string]        `json:"tags"`
	Specifications datatypes.JSONSlice[Specification] `json:"specifications"`
	CreatedAt      time.Time                          `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time                          `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// LowStock reports whether stock has fallen to the reorder threshold.
func (p Product) LowStock() bool {
	return p.Stock <= p.MinStock
}
