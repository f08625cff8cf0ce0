package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

type Service interface {
	Place(ctx context.Context, req PlaceRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	// List returns the caller's own orders.
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	// ListAll returns every order and requires an admin caller.
	ListAll(ctx context.Context, req ListRequest) (*ListResponse, error)
	UpdateStatus(ctx context.Context, id string, req StatusRequest) (*Response, error)
}

type PlaceItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceRequest struct {
	Items           []PlaceItem `json:"items"`
	ShippingAddress Address     `json:"shipping_address"`
	PaymentMethod   string      `json:"payment_method"`
	Notes           string      `json:"notes"`
}

type StatusRequest struct {
	Status            string     `json:"status"`
	TrackingNumber    *string    `json:"tracking_number"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
}

type ListRequest struct {
	Status string
	Search string
	Page   int
	Limit  int
}

type ItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type Response struct {
	ID                string          `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            string          `json:"user_id"`
	Customer          *Customer       `json:"customer,omitempty"`
	Items             []ItemResponse  `json:"items"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Tax               decimal.Decimal `json:"tax"`
	Shipping          decimal.Decimal `json:"shipping"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	Status            Status          `json:"status"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	ShippingAddress   Address         `json:"shipping_address"`
	Notes             string          `json:"notes,omitempty"`
	TrackingNumber    *string         `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
	NextStatuses      []Status        `json:"next_statuses"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type ListResponse struct {
	Orders     []Response          `json:"orders"`
	Pagination pagination.PageInfo `json:"pagination"`
}
