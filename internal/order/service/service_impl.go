package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/observability/metrics"
	"github.com/smallbiznis/backoffice/internal/order/domain"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultListLimit = 10

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	ProductRepo productdomain.Repository
	Clock       clock.Clock
	Commerce    *config.CommerceConfigHolder
	Numbers     NumberGenerator  `optional:"true"`
	Emitter     events.Emitter   `optional:"true"`
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	productRepo productdomain.Repository
	clock       clock.Clock
	commerce    *config.CommerceConfigHolder
	numbers     NumberGenerator
	emitter     events.Emitter
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	numbers := p.Numbers
	if numbers == nil {
		numbers = NewNumberGenerator()
	}
	emitter := p.Emitter
	if emitter == nil {
		emitter = events.Nop()
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
		clock:       p.Clock,
		commerce:    p.Commerce,
		numbers:     numbers,
		emitter:     emitter,
		metrics:     p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	order, err := db.ReadWithRetry(ctx, func(ctx context.Context) (*domain.Order, error) {
		return s.repo.FindByID(ctx, s.db, orderID)
	})
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if !principal.IsAdmin() && order.UserID != principal.UserID.Int64() {
		return nil, domain.ErrForbidden
	}

	resp := toResponse(order)
	s.attachCustomers(ctx, []*domain.Response{&resp}, []int64{order.UserID})
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if principal.IsAdmin() {
		return s.list(ctx, req, nil)
	}
	userID := principal.UserID.Int64()
	return s.list(ctx, req, &userID)
}

func (s *Service) ListAll(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	if !principal.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.list(ctx, req, nil)
}

func (s *Service) list(ctx context.Context, req domain.ListRequest, userID *int64) (*domain.ListResponse, error) {
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(defaultListLimit)

	var status domain.Status
	if raw := strings.ToLower(strings.TrimSpace(req.Status)); raw != "" && raw != "all" {
		parsed, ok := domain.ParseStatus(raw)
		if !ok {
			return nil, domain.ErrInvalidStatus
		}
		status = parsed
	}

	filter := domain.ListFilter{
		UserID: userID,
		Status: status,
		Search: strings.TrimSpace(req.Search),
		Offset: page.Offset(),
		Limit:  page.Limit,
	}

	type listResult struct {
		items []domain.Order
		total int64
	}
	result, err := db.ReadWithRetry(ctx, func(ctx context.Context) (listResult, error) {
		items, total, err := s.repo.List(ctx, s.db, filter)
		return listResult{items: items, total: total}, err
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Response, 0, len(result.items))
	refs := make([]*domain.Response, 0, len(result.items))
	userIDs := make([]int64, 0, len(result.items))
	for i := range result.items {
		orders = append(orders, toResponse(&result.items[i]))
		userIDs = append(userIDs, result.items[i].UserID)
	}
	for i := range orders {
		refs = append(refs, &orders[i])
	}
	s.attachCustomers(ctx, refs, userIDs)

	return &domain.ListResponse{
		Orders:     orders,
		Pagination: pagination.BuildPageInfo(page, result.total),
	}, nil
}

// attachCustomers resolves customer display fields. A lookup failure leaves
// the customer empty rather than failing the read.
func (s *Service) attachCustomers(ctx context.Context, resps []*domain.Response, userIDs []int64) {
	if len(userIDs) == 0 {
		return
	}
	customers, err := s.repo.FindCustomers(ctx, s.db, uniqueIDs(userIDs))
	if err != nil {
		s.log.Warn("resolve customers failed", zap.Error(err))
		return
	}
	for i, resp := range resps {
		if c, ok := customers[userIDs[i]]; ok {
			customer := c
			resp.Customer = &customer
		}
	}
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.log.Warn("emit event failed", zap.String("event_type", event.Type), zap.Error(err))
	}
}

func parseID(id string) (int64, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed.Int64(), nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toResponse(o *domain.Order) domain.Response {
	items := make([]domain.ItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, domain.ItemResponse{
			ProductID: snowflake.ID(item.ProductID).String(),
			Name:      item.Name,
			SKU:       item.SKU,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	next := domain.NextStatuses(o.Status)
	if next == nil {
		next = []domain.Status{}
	}
	return domain.Response{
		ID:                snowflake.ID(o.ID).String(),
		OrderNumber:       o.OrderNumber,
		UserID:            snowflake.ID(o.UserID).String(),
		Items:             items,
		Subtotal:          o.Subtotal,
		Tax:               o.Tax,
		Shipping:          o.Shipping,
		Discount:          o.Discount,
		Total:             o.Total,
		Status:            o.Status,
		PaymentStatus:     o.PaymentStatus,
		PaymentMethod:     o.PaymentMethod,
		ShippingAddress:   o.ShippingAddress.Data(),
		Notes:             o.Notes,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
		NextStatuses:      next,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}
