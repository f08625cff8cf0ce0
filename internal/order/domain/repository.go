package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, int64, error)
	FindCustomers(ctx context.Context, db *gorm.DB, userIDs []int64) (map[int64]Customer, error)

	// UpdateStatus applies the update only while the order is still in
	// update.From. It reports false when another writer got there first.
	UpdateStatus(ctx context.Context, db *gorm.DB, update StatusUpdate) (bool, error)
}

type ListFilter struct {
	UserID *int64
	Status Status
	Search string
	Offset int
	Limit  int
}

type StatusUpdate struct {
	ID                int64
	From              Status
	To                Status
	TrackingNumber    *string
	EstimatedDelivery *time.Time
	Now               time.Time
}
