package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/order/domain"
	"github.com/smallbiznis/backoffice/internal/order/repository"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	productrepo "github.com/smallbiznis/backoffice/internal/product/repository"
	productsvc "github.com/smallbiznis/backoffice/internal/product/service"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
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

func (c *captureEmitter) ofType(eventType string) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// scriptedNumbers replays fixed order numbers before falling back to ULIDs.
type scriptedNumbers struct {
	mu      sync.Mutex
	numbers []string
}

func (s *scriptedNumbers) Next(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.numbers) == 0 {
		return NewNumberGenerator().Next(now)
	}
	n := s.numbers[0]
	s.numbers = s.numbers[1:]
	return n
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
	emitter  *captureEmitter
	numbers  *scriptedNumbers
	products productdomain.Repository
	admin    context.Context
	buyer    context.Context
	buyerID  int64
	other    context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&userdomain.User{},
		&productdomain.Product{},
		&domain.Order{},
		&domain.OrderItem{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	emitter := &captureEmitter{}
	numbers := &scriptedNumbers{}
	products := productrepo.Provide()

	svc := New(Params{
		DB:          conn,
		Log:         zaptest.NewLogger(t),
		GenID:       node,
		Repo:        repository.Provide(),
		ProductRepo: products,
		Clock:       fc,
		Commerce:    config.NewStaticCommerceConfigHolder(config.DefaultCommerceConfig()),
		Numbers:     numbers,
		Emitter:     emitter,
	}).(*Service)

	f := &fixture{
		svc:      svc,
		db:       conn,
		node:     node,
		clock:    fc,
		emitter:  emitter,
		numbers:  numbers,
		products: products,
	}
	adminID := f.user(t, "Ada Admin", "ada@example.com", authcontext.RoleAdmin)
	f.buyerID = f.user(t, "Ben Buyer", "ben@example.com", authcontext.RoleEmployee)
	otherID := f.user(t, "Cy Clerk", "cy@example.com", authcontext.RoleEmployee)

	f.admin = principal(adminID, authcontext.RoleAdmin)
	f.buyer = principal(f.buyerID, authcontext.RoleEmployee)
	f.other = principal(otherID, authcontext.RoleEmployee)
	return f
}

func principal(id int64, role string) context.Context {
	return authcontext.WithPrincipal(context.Background(), authcontext.Principal{
		UserID: snowflake.ID(id),
		Role:   role,
	})
}

func (f *fixture) user(t *testing.T, name, email, role string) int64 {
	t.Helper()
	now := f.clock.Now()
	u := &userdomain.User{
		ID:        f.node.Generate().Int64(),
		Name:      name,
		Email:     email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, f.db.Create(u).Error)
	return u.ID
}

func (f *fixture) product(t *testing.T, sku, price string, stock int) string {
	t.Helper()
	now := f.clock.Now()
	p := &productdomain.Product{
		ID:          f.node.Generate().Int64(),
		Name:        "Item " + sku,
		Slug:        sku,
		Description: "Test catalog item",
		Price:       decimal.RequireFromString(price),
		Category:    productdomain.CategoryOfficeBasics,
		SKU:         sku,
		Stock:       stock,
		MinStock:    2,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.products.Create(context.Background(), f.db, p))
	return snowflake.ID(p.ID).String()
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	parsed, err := snowflake.ParseString(id)
	require.NoError(t, err)
	p, err := f.products.FindByID(context.Background(), f.db, parsed.Int64())
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.Order{}).Count(&count).Error)
	return count
}

func placeReq(items ...domain.PlaceItem) domain.PlaceRequest {
	return domain.PlaceRequest{
		Items:           items,
		PaymentMethod:   "cash",
		ShippingAddress: domain.Address{Name: "Ben Buyer", Street: "1 Main St", City: "Springfield"},
	}
}

func TestPlaceComputesTotalsAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "25.00", 5)

	resp, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 2}))
	require.NoError(t, err)

	assert.True(t, decimal.RequireFromString("50.00").Equal(resp.Subtotal))
	assert.True(t, decimal.RequireFromString("5.00").Equal(resp.Tax))
	assert.True(t, decimal.RequireFromString("10.00").Equal(resp.Shipping))
	assert.True(t, decimal.RequireFromString("65.00").Equal(resp.Total))
	assert.Equal(t, domain.StatusPending, resp.Status)
	assert.Equal(t, domain.PaymentStatusPending, resp.PaymentStatus)
	assert.Regexp(t, `^ORD-[0-9A-Z]{26}$`, resp.OrderNumber)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Item P1", resp.Items[0].Name)
	require.NotNil(t, resp.Customer)
	assert.Equal(t, "ben@example.com", resp.Customer.Email)

	assert.Equal(t, 3, f.stock(t, p1))
	assert.Len(t, f.emitter.ofType(events.TypeOrderCreated), 1)
}

func TestPlaceFreeShippingAndPaymentStatus(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "60.00", 10)

	req := placeReq(domain.PlaceItem{ProductID: p1, Quantity: 2})
	req.PaymentMethod = "card"
	resp, err := f.svc.Place(f.buyer, req)
	require.NoError(t, err)
	assert.True(t, resp.Shipping.IsZero())
	assert.True(t, decimal.RequireFromString("132.00").Equal(resp.Total))
	assert.Equal(t, domain.PaymentStatusPaid, resp.PaymentStatus)

	t.Run("exactly at threshold still pays shipping", func(t *testing.T) {
		p2 := f.product(t, "P2", "50.00", 10)
		resp, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p2, Quantity: 2}))
		require.NoError(t, err)
		assert.True(t, decimal.RequireFromString("10").Equal(resp.Shipping))
	})

	t.Run("unknown payment method", func(t *testing.T) {
		req := placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1})
		req.PaymentMethod = "barter"
		_, err := f.svc.Place(f.buyer, req)
		assert.ErrorIs(t, err, domain.ErrInvalidPaymentMethod)
	})
}

func TestPlaceIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "25.00", 5)
	p2 := f.product(t, "P2", "3.00", 1)

	_, err := f.svc.Place(f.buyer, placeReq(
		domain.PlaceItem{ProductID: p1, Quantity: 2},
		domain.PlaceItem{ProductID: p2, Quantity: 4},
	))
	require.Error(t, err)

	var stockErr *domain.InsufficientStockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, p2, stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(t, p1))
	assert.Equal(t, 1, f.stock(t, p2))
	assert.Equal(t, int64(0), f.orderCount(t))
	assert.Empty(t, f.emitter.ofType(events.TypeOrderCreated))
}

func TestPlaceValidation(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "25.00", 1)

	_, err := f.svc.Place(f.buyer, placeReq())
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 0}))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	missing := f.node.Generate().String()
	_, err = f.svc.Place(f.buyer, placeReq(
		domain.PlaceItem{ProductID: missing, Quantity: 1},
		domain.PlaceItem{ProductID: p1, Quantity: 9},
	))
	var unavailable *domain.ProductUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, missing, unavailable.ProductID)

	_, err = f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: "bogus", Quantity: 1}))
	assert.ErrorIs(t, err, domain.ErrProductUnavailable)

	_, err = f.svc.Place(context.Background(), placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	t.Run("inactive product", func(t *testing.T) {
		parsed, _ := snowflake.ParseString(p1)
		ok, err := f.products.Deactivate(context.Background(), f.db, parsed.Int64(), f.clock.Now())
		require.NoError(t, err)
		require.True(t, ok)

		_, err = f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
		assert.ErrorIs(t, err, domain.ErrProductUnavailable)
	})
}

func TestPlaceRejectsProductCreatedInactive(t *testing.T) {
	f := newFixture(t)
	catalog := productsvc.New(productsvc.Params{
		DB:       f.db,
		Log:      zaptest.NewLogger(t),
		GenID:    f.node,
		Repo:     f.products,
		Clock:    f.clock,
		Commerce: config.NewStaticCommerceConfigHolder(config.DefaultCommerceConfig()),
		Emitter:  f.emitter,
	})

	inactive := false
	created, err := catalog.Create(f.admin, productdomain.CreateRequest{
		Name:        "Binder Clips Small",
		Description: "Box of small black binder clips",
		Price:       decimal.RequireFromString("3.25"),
		Category:    string(productdomain.CategoryOfficeBasics),
		SKU:         "CLP-001",
		Stock:       40,
		IsActive:    &inactive,
	})
	require.NoError(t, err)
	require.False(t, created.IsActive)

	parsed, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)
	_, err = catalog.FindAvailable(f.admin, parsed.Int64())
	assert.ErrorIs(t, err, productdomain.ErrNotFound)

	_, err = f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: created.ID, Quantity: 1}))
	var unavailable *domain.ProductUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, created.ID, unavailable.ProductID)
	assert.Equal(t, 40, f.stock(t, created.ID))
	assert.Equal(t, int64(0), f.orderCount(t))
}

func TestPlaceMergesRepeatedProducts(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "2.50", 10)
	p2 := f.product(t, "P2", "1.00", 10)

	resp, err := f.svc.Place(f.buyer, placeReq(
		domain.PlaceItem{ProductID: p1, Quantity: 2},
		domain.PlaceItem{ProductID: p2, Quantity: 1},
		domain.PlaceItem{ProductID: p1, Quantity: 3},
	))
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, p1, resp.Items[0].ProductID)
	assert.Equal(t, 5, resp.Items[0].Quantity)
	assert.Equal(t, 5, f.stock(t, p1))

	t.Run("merged quantity is checked against stock", func(t *testing.T) {
		_, err := f.svc.Place(f.buyer, placeReq(
			domain.PlaceItem{ProductID: p2, Quantity: 5},
			domain.PlaceItem{ProductID: p2, Quantity: 5},
		))
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Equal(t, 9, f.stock(t, p2))
	})
}

func TestPlaceEmitsLowStock(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "1.00", 5)

	_, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 3}))
	require.NoError(t, err)

	low := f.emitter.ofType(events.TypeProductLowStock)
	require.Len(t, low, 1)
	assert.Equal(t, p1, low[0].SubjectID)
}

func TestPlaceRetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "1.00", 10)

	f.numbers.numbers = []string{"ORD-FIXED"}
	first, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, "ORD-FIXED", first.OrderNumber)

	f.numbers.numbers = []string{"ORD-FIXED", "ORD-FIXED"}
	second, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	require.NoError(t, err)
	assert.NotEqual(t, "ORD-FIXED", second.OrderNumber)

	// Rolled-back attempts must not leak stock.
	assert.Equal(t, 8, f.stock(t, p1))

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		f.numbers.numbers = []string{"ORD-FIXED", "ORD-FIXED", "ORD-FIXED"}
		_, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
		assert.True(t, db.IsDuplicateKeyErr(err))
		assert.Equal(t, 8, f.stock(t, p1))
	})
}

func TestConcurrentPlacementNeverOversells(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "1.00", 5)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, qty := range []int{3, 4} {
		wg.Add(1)
		go func(qty int) {
			defer wg.Done()
			_, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: qty}))
			results <- err
		}(qty)
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, 1, succeeded)
	assert.GreaterOrEqual(t, f.stock(t, p1), 0)
	assert.Equal(t, int64(1), f.orderCount(t))
}

func TestGetAndListScoping(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "1.00", 50)

	mine, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	_, err = f.svc.Place(f.other, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	require.NoError(t, err)

	got, err := f.svc.Get(f.buyer, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, mine.OrderNumber, got.OrderNumber)

	_, err = f.svc.Get(f.other, mine.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Get(f.admin, mine.ID)
	assert.NoError(t, err)

	_, err = f.svc.Get(f.admin, f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	own, err := f.svc.List(f.buyer, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, own.Orders, 1)
	assert.Equal(t, mine.ID, own.Orders[0].ID)

	all, err := f.svc.ListAll(f.admin, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 2)
	assert.Equal(t, int64(2), all.Pagination.Total)

	adminView, err := f.svc.List(f.admin, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, adminView.Orders, 2)

	_, err = f.svc.ListAll(f.buyer, domain.ListRequest{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	t.Run("search by customer email", func(t *testing.T) {
		resp, err := f.svc.ListAll(f.admin, domain.ListRequest{Search: "cy@example"})
		require.NoError(t, err)
		require.Len(t, resp.Orders, 1)
		assert.Equal(t, "cy@example.com", resp.Orders[0].Customer.Email)
	})

	t.Run("search by shipping address", func(t *testing.T) {
		resp, err := f.svc.ListAll(f.admin, domain.ListRequest{Search: "springfield"})
		require.NoError(t, err)
		assert.Len(t, resp.Orders, 2)

		resp, err = f.svc.ListAll(f.admin, domain.ListRequest{Search: "shelbyville"})
		require.NoError(t, err)
		assert.Empty(t, resp.Orders)
	})

	t.Run("search by order number", func(t *testing.T) {
		resp, err := f.svc.ListAll(f.admin, domain.ListRequest{Search: mine.OrderNumber})
		require.NoError(t, err)
		require.Len(t, resp.Orders, 1)
	})

	t.Run("status filter", func(t *testing.T) {
		resp, err := f.svc.ListAll(f.admin, domain.ListRequest{Status: "shipped"})
		require.NoError(t, err)
		assert.Empty(t, resp.Orders)

		resp, err = f.svc.ListAll(f.admin, domain.ListRequest{Status: "all"})
		require.NoError(t, err)
		assert.Len(t, resp.Orders, 2)

		_, err = f.svc.ListAll(f.admin, domain.ListRequest{Status: "lost"})
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "1.00", 50)
	placed, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	require.NoError(t, err)

	move := func(status string, tracking *string) (*domain.Response, error) {
		f.clock.Advance(time.Hour)
		return f.svc.UpdateStatus(f.admin, placed.ID, domain.StatusRequest{Status: status, TrackingNumber: tracking})
	}

	_, err = f.svc.UpdateStatus(f.buyer, placed.ID, domain.StatusRequest{Status: "confirmed"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = move("teleported", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = move("delivered", nil)
	var illegal *domain.IllegalTransitionError
	require.True(t, errors.As(err, &illegal))
	assert.Equal(t, domain.StatusPending, illegal.From)

	for _, s := range []string{"confirmed", "processing"} {
		_, err := move(s, nil)
		require.NoError(t, err)
	}

	tracking := "TRK-1"
	shipped, err := move("shipped", &tracking)
	require.NoError(t, err)
	require.NotNil(t, shipped.TrackingNumber)
	assert.Equal(t, "TRK-1", *shipped.TrackingNumber)

	delivered, err := move("delivered", nil)
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveredAt)
	firstDelivery := *delivered.DeliveredAt
	assert.Equal(t, "TRK-1", *delivered.TrackingNumber)
	assert.Empty(t, delivered.NextStatuses)

	again, err := move("delivered", nil)
	require.NoError(t, err)
	assert.True(t, firstDelivery.Equal(*again.DeliveredAt))

	tracking2 := "TRK-2"
	again, err = move("delivered", &tracking2)
	require.NoError(t, err)
	assert.Equal(t, "TRK-2", *again.TrackingNumber)
	assert.True(t, firstDelivery.Equal(*again.DeliveredAt))

	_, err = move("cancelled", nil)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	changes := f.emitter.ofType(events.TypeOrderStatusChanged)
	assert.Len(t, changes, 4)

	_, err = f.svc.UpdateStatus(f.admin, f.node.Generate().String(), domain.StatusRequest{Status: "confirmed"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCancelFromNonTerminal(t *testing.T) {
	f := newFixture(t)
	p1 := f.product(t, "P1", "1.00", 50)
	placed, err := f.svc.Place(f.buyer, placeReq(domain.PlaceItem{ProductID: p1, Quantity: 1}))
	require.NoError(t, err)

	resp, err := f.svc.UpdateStatus(f.admin, placed.ID, domain.StatusRequest{Status: "Cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, resp.Status)
	assert.Nil(t, resp.DeliveredAt)
}
