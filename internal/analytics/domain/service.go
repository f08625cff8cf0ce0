package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
)

var ErrInvalidPeriod = errors.New("invalid_period")

// Period selects the analytics window. PeriodMonth starts at the first of
// the current month; the others look back a fixed number of days.
type Period string

const (
	Period7Days   Period = "7"
	Period30Days  Period = "30"
	Period90Days  Period = "90"
	Period365Days Period = "365"
	PeriodMonth   Period = "month"
)

type Service interface {
	Stats(ctx context.Context) (*Stats, error)
	Analytics(ctx context.Context, period string) (*Report, error)
}

type ProductSales struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type RecentOrder struct {
	ID            string          `json:"id"`
	OrderNumber   string          `json:"order_number"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Stats struct {
	TotalUsers       int64                    `json:"total_users"`
	TotalProducts    int64                    `json:"total_products"`
	TotalOrders      int64                    `json:"total_orders"`
	OrdersThisMonth  int64                    `json:"orders_this_month"`
	RevenueThisMonth decimal.Decimal          `json:"revenue_this_month"`
	OrderGrowth      float64                  `json:"order_growth"`
	RevenueGrowth    float64                  `json:"revenue_growth"`
	LowStockProducts []productdomain.Response `json:"low_stock_products"`
	RecentOrders     []RecentOrder            `json:"recent_orders"`
	OrderStatus      map[string]int64         `json:"order_status"`
	TopProducts      []ProductSales           `json:"top_products"`
}

type Overview struct {
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalOrders    int64           `json:"total_orders"`
	TotalCustomers int64           `json:"total_customers"`
	AvgOrderValue  decimal.Decimal `json:"avg_order_value"`
}

type SalesPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}

type CategorySales struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type Report struct {
	Period       Period          `json:"period"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Overview     Overview        `json:"overview"`
	SalesData    []SalesPoint    `json:"sales_data"`
	CategoryData []CategorySales `json:"category_data"`
	RecentOrders []RecentOrder   `json:"recent_orders"`
}
