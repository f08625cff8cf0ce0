package migration

import (
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	entries, err := fs.ReadDir(sub, ".")
	require.NoError(t, err)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Run(conn, "sqlite"))
	for _, table := range []string{"users", "products", "orders", "order_items"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	// Re-running is a no-op.
	require.NoError(t, Run(conn, "sqlite"))
	require.NoError(t, Run(conn, "sqlite"))

	now := time.Now().UTC()
	require.NoError(t, conn.Create(&productdomain.Product{
		ID:          1,
		Name:        "Archived Stapler",
		Slug:        "archived-stapler",
		Description: "No longer sold",
		Price:       decimal.RequireFromString("12.50"),
		Category:    productdomain.CategoryOfficeBasics,
		SKU:         "STP-OLD",
		IsActive:    false,
		MinStock:    0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error)

	var stored productdomain.Product
	require.NoError(t, conn.First(&stored, 1).Error)
	assert.False(t, stored.IsActive)
	assert.Equal(t, 0, stored.MinStock)
	assert.True(t, decimal.RequireFromString("12.5").Equal(stored.Price), stored.Price.String())
}

func TestRunRequiresHandle(t *testing.T) {
	assert.Error(t, Run(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}
