package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/order/domain"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	maxPlacementAttempts = 3
	orderNumberKey       = "order_number"
)

type line struct {
	rawID     string
	productID int64
	quantity  int
}

type placed struct {
	order    *domain.Order
	lowStock []productdomain.Product
}

// Place validates the cart, reserves stock and records the order in a single
// transaction. Any failure leaves every product's stock untouched.
func (s *Service) Place(ctx context.Context, req domain.PlaceRequest) (*domain.Response, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	lines, err := normalizeLines(req.Items)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, err
	}
	method, ok := domain.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod)))
	if !ok {
		s.recordFailure(ctx, domain.ErrInvalidPaymentMethod)
		return nil, domain.ErrInvalidPaymentMethod
	}

	rules := domain.RulesFromConfig(s.commerce.Get())
	address := normalizeAddress(req.ShippingAddress)
	notes := strings.TrimSpace(req.Notes)

	var result *placed
	for attempt := 1; ; attempt++ {
		result, err = s.placeOnce(ctx, principal.UserID.Int64(), lines, method, address, notes, rules)
		if err == nil {
			break
		}
		if db.IsDuplicateKeyOn(err, orderNumberKey) && attempt < maxPlacementAttempts {
			s.log.Warn("order number collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		s.recordFailure(ctx, err)
		return nil, err
	}

	order := result.order
	orderID := snowflake.ID(order.ID).String()
	userID := principal.UserID.String()

	s.log.Info("order placed",
		zap.String("order_id", orderID),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)),
	)
	s.metrics.RecordOrderPlaced(ctx, string(order.PaymentMethod))

	created := events.New(events.TypeOrderCreated,
		fmt.Sprintf("New order placed: %s", order.OrderNumber),
		orderID,
		map[string]any{
			"order_number": order.OrderNumber,
			"user_id":      userID,
			"total":        order.Total.StringFixed(2),
			"items":        len(order.Items),
		},
	)
	created.Channels = []string{events.ChannelAdmin, events.UserChannel(userID)}
	s.emit(ctx, created)

	for _, p := range result.lowStock {
		s.emit(ctx, events.New(events.TypeProductLowStock,
			fmt.Sprintf("Low stock: %s has %d left", p.Name, p.Stock),
			snowflake.ID(p.ID).String(),
			map[string]any{"sku": p.SKU, "stock": p.Stock, "min_stock": p.MinStock},
		))
	}

	resp := toResponse(order)
	s.attachCustomers(ctx, []*domain.Response{&resp}, []int64{order.UserID})
	return &resp, nil
}

func (s *Service) placeOnce(
	ctx context.Context,
	userID int64,
	lines []line,
	method domain.PaymentMethod,
	address domain.Address,
	notes string,
	rules domain.PricingRules,
) (*placed, error) {
	now := s.clock.Now()
	result := &placed{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.productID)
		}
		products, err := s.productRepo.FindByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]productdomain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		// Validate every line before touching stock so the first offending
		// item in cart order is the one reported.
		for _, l := range lines {
			p, ok := byID[l.productID]
			if !ok || !p.IsActive {
				return &domain.ProductUnavailableError{ProductID: l.rawID}
			}
			if l.quantity > p.Stock {
				return &domain.InsufficientStockError{ProductID: l.rawID, Available: p.Stock, Requested: l.quantity}
			}
		}

		orderID := s.genID.Generate().Int64()
		items := make([]domain.OrderItem, 0, len(lines))
		subtotal := decimal.Zero
		for _, l := range lines {
			applied, err := s.productRepo.DecrementStock(ctx, tx, l.productID, l.quantity, now)
			if err != nil {
				return err
			}
			if !applied {
				return s.reservationFailure(ctx, tx, l)
			}

			p := byID[l.productID]
			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(l.quantity))).Round(2)
			subtotal = subtotal.Add(lineTotal)
			items = append(items, domain.OrderItem{
				ID:        s.genID.Generate().Int64(),
				OrderID:   orderID,
				ProductID: p.ID,
				Name:      p.Name,
				SKU:       p.SKU,
				Category:  string(p.Category),
				Quantity:  l.quantity,
				UnitPrice: p.Price,
				LineTotal: lineTotal,
			})
		}

		totals := domain.ComputeTotals(subtotal, rules)
		order := &domain.Order{
			ID:              orderID,
			OrderNumber:     s.numbers.Next(now),
			UserID:          userID,
			Subtotal:        totals.Subtotal,
			Tax:             totals.Tax,
			Shipping:        totals.Shipping,
			Discount:        totals.Discount,
			Total:           totals.Total,
			Status:          domain.StatusPending,
			PaymentStatus:   domain.InitialPaymentStatus(method),
			PaymentMethod:   method,
			ShippingAddress: datatypes.NewJSONType(address),
			Notes:           notes,
			CreatedAt:       now,
			UpdatedAt:       now,
			Items:           items,
		}
		if err := s.repo.Create(ctx, tx, order); err != nil {
			return err
		}

		after, err := s.productRepo.FindByIDs(ctx, tx, ids)
		if err != nil {
			return err
		}
		for _, p := range after {
			if p.LowStock() {
				result.lowStock = append(result.lowStock, p)
			}
		}

		result.order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// reservationFailure explains a conditional decrement that matched no row:
// the product was deactivated or its stock drained after validation.
func (s *Service) reservationFailure(ctx context.Context, tx *gorm.DB, l line) error {
	current, err := s.productRepo.FindByID(ctx, tx, l.productID)
	if err != nil {
		return err
	}
	if current == nil || !current.IsActive {
		return &domain.ProductUnavailableError{ProductID: l.rawID}
	}
	return &domain.InsufficientStockError{ProductID: l.rawID, Available: current.Stock, Requested: l.quantity}
}

func (s *Service) recordFailure(ctx context.Context, err error) {
	s.metrics.RecordPlacementFailure(ctx, failureReason(err))
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyOrder):
		return "empty_order"
	case errors.Is(err, domain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, domain.ErrInvalidPaymentMethod):
		return "invalid_payment_method"
	case errors.Is(err, domain.ErrProductUnavailable):
		return "product_unavailable"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "persistence"
	}
}

// normalizeLines merges repeated products into one line, keeping the
// position of the first occurrence.
func normalizeLines(items []domain.PlaceItem) ([]line, error) {
	if len(items) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	lines := make([]line, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
		raw := strings.TrimSpace(item.ProductID)
		parsed, err := snowflake.ParseString(raw)
		if err != nil || parsed == 0 {
			return nil, &domain.ProductUnavailableError{ProductID: raw}
		}
		id := parsed.Int64()
		if i, ok := index[id]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[id] = len(lines)
		lines = append(lines, line{rawID: parsed.String(), productID: id, quantity: item.Quantity})
	}
	return lines, nil
}

func normalizeAddress(a domain.Address) domain.Address {
	return domain.Address{
		Name:    strings.TrimSpace(a.Name),
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		ZipCode: strings.TrimSpace(a.ZipCode),
		Country: strings.TrimSpace(a.Country),
		Phone:   strings.TrimSpace(a.Phone),
	}
}
