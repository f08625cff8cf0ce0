package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodOnline PaymentMethod = "online"
)

// ParsePaymentMethod defaults an empty value to cash.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch PaymentMethod(raw) {
	case "":
		return PaymentMethodCash, true
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodOnline:
		return PaymentMethod(raw), true
	default:
		return "", false
	}
}

// InitialPaymentStatus is pending for cash on delivery, paid otherwise.
func InitialPaymentStatus(method PaymentMethod) PaymentStatus {
	if method == PaymentMethodCash {
		return PaymentStatusPending
	}
	return PaymentStatusPaid
}

type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

// Order is immutable after placement except for its fulfillment fields.
type Order struct {
	ID                int64           `gorm:"primaryKey"`
	OrderNumber       string          `gorm:"size:64;not null;uniqueIndex:ux_orders_order_number"`
	UserID            int64           `gorm:"not null;index"`
	Subtotal          decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
	Tax               decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
	Shipping          decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
	Discount          decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
	Total             decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
	Status            Status          `gorm:"size:32;not null;index"`
	PaymentStatus     PaymentStatus   `gorm:"size:32;not null"`
	PaymentMethod     PaymentMethod   `gorm:"size:32;not null"`
	ShippingAddress   datatypes.JSONType[Address]
	Notes             string  `gorm:"type:text"`
	TrackingNumber    *string `gorm:"size:128"`
	EstimatedDelivery *time.Time
	DeliveredAt       *time.Time
	CreatedAt         time.Time   `gorm:"not null;index"`
	UpdatedAt         time.Time   `gorm:"not null"`
	Items             []OrderItem `gorm:"foreignKey:OrderID"`
}

func (Order) TableName() string { return "orders" }

// OrderItem snapshots the product at placement time.
type OrderItem struct {
	ID        int64           `gorm:"primaryKey"`
	OrderID   int64           `gorm:"not null;index"`
	ProductID int64           `gorm:"not null;index"`
	Name      string          `gorm:"type:text;not null"`
	SKU       string          `gorm:"column:sku;size:64;not null"`
	Category  string          `gorm:"size:64;not null"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
	LineTotal decimal.Decimal `gorm:"type:float;precision:12;scale:2;not null"`
}

func (OrderItem) TableName() string { return "order_items" }

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
