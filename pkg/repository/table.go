// Package repository holds a small typed wrapper over gorm for aggregates
// that only need filter-by-example reads and column patches.
package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/backoffice/pkg/db/option"
	"gorm.io/gorm"
)

type Table[T any] struct {
	db *gorm.DB
}

func NewTable[T any](db *gorm.DB) *Table[T] {
	return &Table[T]{db: db}
}

// Tx runs fn against a copy of the table bound to a single transaction.
func (t *Table[T]) Tx(ctx context.Context, fn func(tx *Table[T]) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Table[T]{db: tx})
	})
}

func (t *Table[T]) query(ctx context.Context, where *T, opts []option.QueryOption) *gorm.DB {
	q := t.db.WithContext(ctx).Model(new(T))
	if where != nil {
		q = q.Where(where)
	}
	for _, opt := range opts {
		q = opt.Apply(q)
	}
	return q
}

// List returns every row matching the non-zero fields of where.
func (t *Table[T]) List(ctx context.Context, where *T, opts ...option.QueryOption) ([]*T, error) {
	rows := []*T{}
	if err := t.query(ctx, where, opts).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// First returns nil without an error when nothing matches.
func (t *Table[T]) First(ctx context.Context, where *T, opts ...option.QueryOption) (*T, error) {
	var row T
	err := t.query(ctx, where, opts).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (t *Table[T]) Count(ctx context.Context, where *T, opts ...option.QueryOption) (int64, error) {
	var n int64
	err := t.query(ctx, where, opts).Count(&n).Error
	return n, err
}

func (t *Table[T]) Insert(ctx context.Context, rows ...*T) error {
	switch len(rows) {
	case 0:
		return nil
	case 1:
		return t.db.WithContext(ctx).Create(rows[0]).Error
	default:
		return t.db.WithContext(ctx).Create(rows).Error
	}
}

// Patch writes columns to the row with the given id and reports whether a
// row was touched.
func (t *Table[T]) Patch(ctx context.Context, id int64, columns map[string]any) (bool, error) {
	if len(columns) == 0 {
		return false, nil
	}
	res := t.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(columns)
	return res.RowsAffected > 0, res.Error
}
