package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestDescribeSQL(t *testing.T) {
	cases := []struct {
		stmt  string
		verb  string
		table string
	}{
		{`UPDATE "products" SET stock = stock - 1`, "UPDATE", "products"},
		{`SELECT * FROM "orders" WHERE id = $1`, "SELECT", "orders"},
		{`WITH x AS (SELECT 1) SELECT * FROM x`, "SELECT", "x"},
		{`INSERT INTO order_items (order_id) VALUES (1)`, "INSERT", "order_items"},
		{`CREATE TABLE IF NOT EXISTS users (id bigint)`, "CREATE", "users"},
		{``, "UNKNOWN", ""},
	}
	for _, tc := range cases {
		verb, table := describeSQL(tc.stmt)
		assert.Equal(t, tc.verb, verb, tc.stmt)
		assert.Equal(t, tc.table, table, tc.stmt)
	}
}

func TestSQLLoggerTraceLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewSQLLogger(zap.New(core)).SlowAfter(10 * time.Millisecond)

	fc := func() (string, int64) { return "SELECT * FROM orders", 1 }

	l.Trace(context.Background(), time.Now(), fc, nil)
	assert.Equal(t, 0, logs.Len())

	l.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
	slow := logs.FilterMessage("db.query").FilterField(zap.String("table", "orders"))
	assert.Equal(t, 1, slow.FilterLevelExact(zap.WarnLevel).Len())

	l.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())

	quiet := l.SkipNotFound()
	quiet.Trace(context.Background(), time.Now(), fc, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())

	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), fc, errors.New("boom"))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}
