package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/backoffice/internal/user/domain"
	"github.com/smallbiznis/backoffice/pkg/db/option"
	"github.com/smallbiznis/backoffice/pkg/repository"
	"gorm.io/gorm"
)

var sortableColumns = map[string]bool{
	"created_at": true,
	"name":       true,
	"email":      true,
	"last_login": true,
}

type repo struct {
	users *repository.Table[domain.User]
}

func New(db *gorm.DB) domain.Repository {
	return &repo{users: repository.NewTable[domain.User](db)}
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	return r.users.Insert(ctx, user)
}

func (r *repo) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.users.First(ctx, &domain.User{ID: id})
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.users.First(ctx, &domain.User{Email: strings.ToLower(strings.TrimSpace(email))})
}

func (r *repo) List(ctx context.Context, filter domain.ListFilter) ([]*domain.User, int64, error) {
	query := &domain.User{Role: filter.Role}

	var conditions []option.QueryOption
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		conditions = append(conditions, option.WithWhere(
			`(LOWER(name) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!' OR LOWER(department) LIKE ? ESCAPE '!')`,
			like, like, like,
		))
	}

	total, err := r.users.Count(ctx, query, conditions...)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*domain.User{}, 0, nil
	}

	opts := append(conditions,
		option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, sortableColumns)),
		option.WithPage(filter.Page, filter.Limit),
	)
	items, err := r.users.List(ctx, query, opts...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) Update(ctx context.Context, id int64, fields map[string]any) error {
	_, err := r.users.Patch(ctx, id, fields)
	return err
}

func (r *repo) Count(ctx context.Context, activeOnly bool) (int64, error) {
	query := &domain.User{}
	if activeOnly {
		query.IsActive = true
	}
	return r.users.Count(ctx, query)
}

func escapeLike(value string) string {
	return strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(value)
}
