package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: orders.order_number")))
}

func TestIsDuplicateKeyOn(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_order_number"}
	assert.True(t, IsDuplicateKeyOn(err, "order_number"))
	assert.False(t, IsDuplicateKeyOn(err, "sku"))
	assert.True(t, IsDuplicateKeyOn(errors.New("UNIQUE constraint failed: products.sku"), "sku"))
}
