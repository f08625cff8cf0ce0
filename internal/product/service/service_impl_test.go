package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/product/domain"
	"github.com/smallbiznis/backoffice/internal/product/repository"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func newTestService(t *testing.T) (*Service, *captureEmitter) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Product{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	emitter := &captureEmitter{}
	svc := New(Params{
		DB:       conn,
		Log:      zaptest.NewLogger(t),
		GenID:    node,
		Repo:     repository.Provide(),
		Clock:    clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)),
		Commerce: config.NewStaticCommerceConfigHolder(config.DefaultCommerceConfig()),
		Emitter:  emitter,
	}).(*Service)
	return svc, emitter
}

func validCreate(sku string) domain.CreateRequest {
	return domain.CreateRequest{
		Name:        "Gel Pen Blue",
		Description: "Smooth writing gel pen, 0.5mm tip",
		Price:       decimal.RequireFromString("2.50"),
		Category:    string(domain.CategoryPensWriting),
		SKU:         sku,
		Stock:       20,
		Tags:        []string{"Pen", "gel", "pen"},
	}
}

func TestCreate(t *testing.T) {
	svc, emitter := newTestService(t)
	ctx := context.Background()

	t.Run("creates product with defaults", func(t *testing.T) {
		resp, err := svc.Create(ctx, validCreate("pen-001"))
		require.NoError(t, err)

		assert.Equal(t, "PEN-001", resp.SKU)
		assert.Equal(t, 10, resp.MinStock)
		assert.True(t, resp.IsActive)
		assert.Equal(t, []string{"pen", "gel"}, resp.Tags)
		assert.Equal(t, "gel-pen-blue-pen-001", resp.Slug)
		require.Len(t, emitter.events, 1)
		assert.Equal(t, events.TypeProductCreated, emitter.events[0].Type)
	})

	t.Run("keeps explicit zero values", func(t *testing.T) {
		inactive, minStock := false, 0
		req := validCreate("OFF-001")
		req.IsActive = &inactive
		req.MinStock = &minStock
		resp, err := svc.Create(ctx, req)
		require.NoError(t, err)
		assert.False(t, resp.IsActive)
		assert.Equal(t, 0, resp.MinStock)

		stored, err := svc.GetAny(ctx, resp.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
		assert.Equal(t, 0, stored.MinStock)

		id, err := snowflake.ParseString(resp.ID)
		require.NoError(t, err)
		_, err = svc.FindAvailable(ctx, id.Int64())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rejects duplicate sku", func(t *testing.T) {
		_, err := svc.Create(ctx, validCreate("PEN-001"))
		assert.ErrorIs(t, err, domain.ErrSKUExists)
	})

	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*domain.CreateRequest)
			want   error
		}{
			{"short name", func(r *domain.CreateRequest) { r.Name = "A" }, domain.ErrInvalidName},
			{"short description", func(r *domain.CreateRequest) { r.Description = "short" }, domain.ErrInvalidDescription},
			{"negative price", func(r *domain.CreateRequest) { r.Price = decimal.NewFromInt(-1) }, domain.ErrInvalidPrice},
			{"unknown category", func(r *domain.CreateRequest) { r.Category = "Furniture" }, domain.ErrInvalidCategory},
			{"short sku", func(r *domain.CreateRequest) { r.SKU = "ab" }, domain.ErrInvalidSKU},
			{"negative stock", func(r *domain.CreateRequest) { r.Stock = -1 }, domain.ErrInvalidStock},
			{"sale over 100", func(r *domain.CreateRequest) { r.SalePercentage = 101 }, domain.ErrInvalidSalePercentage},
		}
		for i, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				req := validCreate(fmt.Sprintf("VAL-%03d", i))
				tc.mutate(&req)
				_, err := svc.Create(ctx, req)
				assert.ErrorIs(t, err, tc.want)
			})
		}
	})
}

func TestDeleteIsSoftAndKeepsSKUReserved(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreate("DEL-001"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	stored, err := svc.GetAny(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	_, err = svc.Create(ctx, validCreate("DEL-001"))
	assert.ErrorIs(t, err, domain.ErrSKUExists)

	assert.ErrorIs(t, svc.Delete(ctx, "not-an-id"), domain.ErrInvalidID)
	assert.ErrorIs(t, svc.Delete(ctx, "12345"), domain.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validCreate("UPD-001"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, validCreate("UPD-002"))
	require.NoError(t, err)

	t.Run("partial update keeps other fields", func(t *testing.T) {
		price := decimal.RequireFromString("3.199")
		stock := 4
		resp, err := svc.Update(ctx, first.ID, domain.UpdateRequest{Price: &price, Stock: &stock})
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("3.2").Equal(resp.Price))
		assert.Equal(t, 4, resp.Stock)
		assert.True(t, resp.LowStock)
		assert.Equal(t, "Gel Pen Blue", resp.Name)
	})

	t.Run("sku conflict", func(t *testing.T) {
		sku := "upd-002"
		_, err := svc.Update(ctx, first.ID, domain.UpdateRequest{SKU: &sku})
		assert.ErrorIs(t, err, domain.ErrSKUExists)
	})

	t.Run("same sku is not a conflict", func(t *testing.T) {
		sku := "UPD-001"
		_, err := svc.Update(ctx, first.ID, domain.UpdateRequest{SKU: &sku})
		assert.NoError(t, err)
	})
}

func TestGetIncludesRelated(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 6; i++ {
		resp, err := svc.Create(ctx, validCreate(fmt.Sprintf("REL-%03d", i)))
		require.NoError(t, err)
		ids = append(ids, resp.ID)
	}
	other := validCreate("OTHER-1")
	other.Category = string(domain.CategoryOfficeBasics)
	_, err := svc.Create(ctx, other)
	require.NoError(t, err)

	detail, err := svc.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], detail.Product.ID)
	assert.Len(t, detail.Related, 4)
	for _, r := range detail.Related {
		assert.NotEqual(t, ids[0], r.ID)
		assert.Equal(t, domain.CategoryPensWriting, r.Category)
	}
}

func TestList(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	seed := []struct {
		sku      string
		name     string
		category domain.Category
		price    string
		featured bool
		onSale   bool
		sale     int
	}{
		{"LST-001", "Stapler Heavy Duty", domain.CategoryOfficeBasics, "15.00", true, false, 0},
		{"LST-002", "Spiral Notebook A5", domain.CategoryPaperNotebooks, "4.00", false, true, 20},
		{"LST-003", "Ballpoint Pen Black", domain.CategoryPensWriting, "1.00", true, true, 50},
		{"LST-004", "Desk Organizer", domain.CategoryDeskAccessories, "30.00", false, false, 0},
	}
	for _, s := range seed {
		req := validCreate(s.sku)
		req.Name = s.name
		req.Category = string(s.category)
		req.Price = decimal.RequireFromString(s.price)
		req.IsFeatured = s.featured
		req.OnSale = s.onSale
		req.SalePercentage = s.sale
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}
	hidden := validCreate("LST-005")
	inactive := false
	hidden.IsActive = &inactive
	_, err := svc.Create(ctx, hidden)
	require.NoError(t, err)

	t.Run("active only with categories", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListRequest{})
		require.NoError(t, err)
		assert.Len(t, resp.Products, 4)
		assert.Equal(t, int64(4), resp.Pagination.Total)
		assert.Equal(t, 12, resp.Pagination.Limit)
		assert.Len(t, resp.Categories, 4)
	})

	t.Run("admin listing includes inactive", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListRequest{IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, resp.Products, 5)
	})

	t.Run("search matches name case-insensitively", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListRequest{Search: "NOTEBOOK"})
		require.NoError(t, err)
		require.Len(t, resp.Products, 1)
		assert.Equal(t, "LST-002", resp.Products[0].SKU)
	})

	t.Run("price range and sort", func(t *testing.T) {
		min := decimal.NewFromInt(2)
		max := decimal.NewFromInt(20)
		resp, err := svc.List(ctx, domain.ListRequest{MinPrice: &min, MaxPrice: &max, SortBy: "price", OrderBy: "asc"})
		require.NoError(t, err)
		require.Len(t, resp.Products, 2)
		assert.Equal(t, "LST-002", resp.Products[0].SKU)
		assert.Equal(t, "LST-001", resp.Products[1].SKU)
	})

	t.Run("pagination", func(t *testing.T) {
		resp, err := svc.List(ctx, domain.ListRequest{Page: 2, Limit: 3, SortBy: "name", OrderBy: "asc"})
		require.NoError(t, err)
		assert.Len(t, resp.Products, 1)
		assert.Equal(t, 2, resp.Pagination.Pages)
	})

	t.Run("invalid category", func(t *testing.T) {
		_, err := svc.List(ctx, domain.ListRequest{Category: "Toys"})
		assert.ErrorIs(t, err, domain.ErrInvalidCategory)
	})

	t.Run("featured and sale highlights", func(t *testing.T) {
		featured, err := svc.ListFeatured(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, featured, 2)

		sale, err := svc.ListOnSale(ctx, 0)
		require.NoError(t, err)
		require.Len(t, sale, 2)
		assert.Equal(t, 50, sale[0].SalePercentage)
	})
}

func TestFindAvailableAndLowStock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	low := validCreate("LOW-001")
	low.Stock = 3
	created, err := svc.Create(ctx, low)
	require.NoError(t, err)
	_, err = svc.Create(ctx, validCreate("OK-0001"))
	require.NoError(t, err)

	id, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	p, err := svc.FindAvailable(ctx, id.Int64())
	require.NoError(t, err)
	assert.Equal(t, "LOW-001", p.SKU)

	items, err := svc.ListLowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "LOW-001", items[0].SKU)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.FindAvailable(ctx, id.Int64())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
