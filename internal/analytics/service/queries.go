package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/analytics/domain"
	orderdomain "github.com/smallbiznis/backoffice/internal/order/domain"
)

type revenueRow struct {
	Orders  int64
	Revenue decimal.NullDecimal
}

type orderPointRow struct {
	CreatedAt time.Time
	Total     decimal.Decimal
}

type productSalesRow struct {
	ProductID int64
	Name      string
	Quantity  int64
	Revenue   decimal.NullDecimal
}

type categoryRow struct {
	Category string
	Revenue  decimal.NullDecimal
}

type recentOrderRow struct {
	ID            int64
	OrderNumber   string
	CustomerName  *string
	CustomerEmail *string
	Total         decimal.Decimal
	Status        string
	CreatedAt     time.Time
}

type statusRow struct {
	Status string
	Total  int64
}

func revenueStatuses() []string {
	out := make([]string, 0, len(orderdomain.RevenueStatuses))
	for _, s := range orderdomain.RevenueStatuses {
		out = append(out, string(s))
	}
	return out
}

func (s *Service) countOrders(ctx context.Context, from, to *time.Time) (int64, error) {
	stmt := s.db.WithContext(ctx).Model(&orderdomain.Order{})
	if from != nil {
		stmt = stmt.Where("created_at >= ?", *from)
	}
	if to != nil {
		stmt = stmt.Where("created_at < ?", *to)
	}
	var count int64
	err := stmt.Count(&count).Error
	return count, err
}

// revenue sums totals of orders in a revenue status created in [from, to).
func (s *Service) revenue(ctx context.Context, from, to time.Time) (int64, decimal.Decimal, error) {
	var row revenueRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) AS orders, SUM(total) AS revenue
		 FROM orders
		 WHERE status IN ? AND created_at >= ? AND created_at < ?`,
		revenueStatuses(), from, to,
	).Scan(&row).Error
	if err != nil {
		return 0, decimal.Zero, err
	}
	return row.Orders, nullToZero(row.Revenue), nil
}

func (s *Service) orderPoints(ctx context.Context, from, to time.Time) ([]orderPointRow, error) {
	var rows []orderPointRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT created_at, total
		 FROM orders
		 WHERE status IN ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at`,
		revenueStatuses(), from, to,
	).Scan(&rows).Error
	return rows, err
}

func (s *Service) statusCounts(ctx context.Context) (map[string]int64, error) {
	var rows []statusRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS total FROM orders GROUP BY status`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(orderdomain.Statuses))
	for _, st := range orderdomain.Statuses {
		out[string(st)] = 0
	}
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

// topProducts ranks products by units sold across non-cancelled orders.
func (s *Service) topProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	var rows []productSalesRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT oi.product_id AS product_id, MAX(oi.name) AS name,
		        SUM(oi.quantity) AS quantity, SUM(oi.line_total) AS revenue
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.status <> ?
		 GROUP BY oi.product_id
		 ORDER BY quantity DESC, revenue DESC, oi.product_id
		 LIMIT ?`,
		string(orderdomain.StatusCancelled), limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ProductSales, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ProductSales{
			ProductID: snowflake.ID(row.ProductID).String(),
			Name:      row.Name,
			Quantity:  row.Quantity,
			Revenue:   nullToZero(row.Revenue),
		})
	}
	return out, nil
}

func (s *Service) categoryRevenue(ctx context.Context, from, to time.Time) ([]domain.CategorySales, error) {
	var rows []categoryRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT oi.category AS category, SUM(oi.line_total) AS revenue
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.status IN ? AND o.created_at >= ? AND o.created_at < ?
		 GROUP BY oi.category
		 ORDER BY revenue DESC, oi.category`,
		revenueStatuses(), from, to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CategorySales, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CategorySales{
			Category: row.Category,
			Revenue:  nullToZero(row.Revenue),
		})
	}
	return out, nil
}

func (s *Service) recentOrders(ctx context.Context, limit int) ([]domain.RecentOrder, error) {
	var rows []recentOrderRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT o.id AS id, o.order_number AS order_number,
		        u.name AS customer_name, u.email AS customer_email,
		        o.total AS total, o.status AS status, o.created_at AS created_at
		 FROM orders o
		 LEFT JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC, o.id DESC
		 LIMIT ?`,
		limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecentOrder, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.RecentOrder{
			ID:            snowflake.ID(row.ID).String(),
			OrderNumber:   row.OrderNumber,
			CustomerName:  deref(row.CustomerName),
			CustomerEmail: deref(row.CustomerEmail),
			TotalAmount:   row.Total,
			Status:        row.Status,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}

func nullToZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal.Round(2)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
