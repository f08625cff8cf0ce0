package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/order/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil || len(order.Items) == 0 {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Order, error) {
	var items []domain.Order
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("id = ?", id).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Order, int64, error) {
	var total int64
	if err := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Order{}, 0, nil
	}

	stmt := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Order("created_at DESC, id DESC")
	if filter.Limit > 0 {
		stmt = stmt.Offset(filter.Offset).Limit(filter.Limit)
	}

	var items []domain.Order
	if err := stmt.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func applyFilter(stmt *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.UserID != nil {
		stmt = stmt.Where("user_id = ?", *filter.UserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", string(filter.Status))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		stmt = stmt.Where(
			`(LOWER(order_number) LIKE ? ESCAPE '!' OR LOWER(`+db.AsText(stmt, "shipping_address")+`) LIKE ? ESCAPE '!' OR user_id IN (SELECT id FROM users WHERE LOWER(email) LIKE ? ESCAPE '!'))`,
			like, like, like,
		)
	}
	return stmt
}

func escapeLike(value string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(value)
}

type customerRow struct {
	ID    int64
	Name  string
	Email string
}

func (r *repo) FindCustomers(ctx context.Context, db *gorm.DB, userIDs []int64) (map[int64]domain.Customer, error) {
	out := make(map[int64]domain.Customer, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var rows []customerRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email FROM users WHERE id IN ?`,
		userIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = domain.Customer{
			ID:    snowflake.ID(row.ID).String(),
			Name:  row.Name,
			Email: row.Email,
		}
	}
	return out, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, update domain.StatusUpdate) (bool, error) {
	var deliveredAt any
	if update.To == domain.StatusDelivered {
		deliveredAt = update.Now
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?,
		     tracking_number = COALESCE(?, tracking_number),
		     estimated_delivery = COALESCE(?, estimated_delivery),
		     delivered_at = COALESCE(delivered_at, ?),
		     updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(update.To),
		update.TrackingNumber,
		update.EstimatedDelivery,
		deliveredAt,
		update.Now,
		update.ID,
		string(update.From),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
