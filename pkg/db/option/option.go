package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// QuerySortBy is a validated column/direction pair.
type QuerySortBy struct {
	Column    string
	Direction string
}

// WithQuerySortBy validates sortBy against the allowed columns. Unknown columns
// fall back to created_at, unknown directions to desc.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) QuerySortBy {
	column := strings.ToLower(strings.TrimSpace(sortBy))
	if !allowed[column] {
		column = "created_at"
	}
	direction := strings.ToLower(strings.TrimSpace(orderBy))
	if direction != "asc" {
		direction = "desc"
	}
	return QuerySortBy{Column: column, Direction: direction}
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if sort.Column == "" {
			return db
		}
		// Tie-break on id so page boundaries are stable.
		order := fmt.Sprintf("%s %s", sort.Column, sort.Direction)
		if sort.Column != "id" {
			order += ", id " + sort.Direction
		}
		return db.Order(order)
	})
}

// WithPage applies offset pagination with a 1-based page.
func WithPage(page, limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		if page < 1 {
			page = 1
		}
		return db.Offset((page - 1) * limit).Limit(limit)
	})
}

type Operator string

const (
	Equal              Operator = "="
	NotEqual           Operator = "<>"
	GreaterThanOrEqual Operator = ">="
	LessThanOrEqual    Operator = "<="
	LessThan           Operator = "<"
	In                 Operator = "IN"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if cond.Field == "" {
			return db
		}
		if cond.Operator == In {
			return db.Where(fmt.Sprintf("%s IN ?", cond.Field), cond.Value)
		}
		return db.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

// WithWhere applies a raw condition with bound arguments.
func WithWhere(query string, args ...any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if strings.TrimSpace(query) == "" {
			return db
		}
		return db.Where(query, args...)
	})
}
