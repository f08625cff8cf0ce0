package domain

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, int64, error)
	Update(ctx context.Context, id int64, fields map[string]any) error
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

type ListFilter struct {
	Role    string
	Search  string
	SortBy  string
	OrderBy string
	Page    int
	Limit   int
}
