package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/product/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 12
	relatedLimit     = 4
	highlightLimit   = 8
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Clock    clock.Clock
	Commerce *config.CommerceConfigHolder
	Emitter  events.Emitter `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	commerce *config.CommerceConfigHolder
	emitter  events.Emitter
}

func New(p Params) domain.Service {
	emitter := p.Emitter
	if emitter == nil {
		emitter = events.Nop()
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("product.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		commerce: p.Commerce,
		emitter:  emitter,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	minStock := s.commerce.Get().DefaultMinStock
	if req.MinStock != nil {
		minStock = *req.MinStock
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:             s.genID.Generate().Int64(),
		Name:           strings.TrimSpace(req.Name),
		Description:    strings.TrimSpace(req.Description),
		Price:          req.Price,
		OriginalPrice:  req.OriginalPrice,
		Category:       domain.Category(strings.TrimSpace(req.Category)),
		Subcategory:    strings.TrimSpace(req.Subcategory),
		Brand:          strings.TrimSpace(req.Brand),
		SKU:            normalizeSKU(req.SKU),
		Images:         datatypes.JSONSlice[domain.Image](req.Images),
		Stock:          req.Stock,
		MinStock:       minStock,
		IsActive:       active,
		IsFeatured:     req.IsFeatured,
		OnSale:         req.OnSale,
		SalePercentage: req.SalePercentage,
		Tags:           datatypes.JSONSlice[string](normalizeTags(req.Tags)),
		Specifications: datatypes.JSONSlice[domain.Specification](req.Specifications),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.Price = p.Price.Round(2)
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	p.Slug = slug.Make(p.Name + " " + p.SKU)

	existing, err := s.repo.FindBySKU(ctx, s.db, p.SKU)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSKUExists
	}

	if err := s.repo.Create(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSKUExists
		}
		return nil, err
	}

	s.log.Info("product created",
		zap.String("product_id", snowflake.ID(p.ID).String()),
		zap.String("sku", p.SKU),
	)
	s.emit(ctx, events.New(events.TypeProductCreated,
		fmt.Sprintf("New product added: %s", p.Name),
		snowflake.ID(p.ID).String(),
		map[string]any{"sku": p.SKU, "category": string(p.Category)},
	))

	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Response, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = strings.TrimSpace(*req.Description)
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.OriginalPrice != nil {
		p.OriginalPrice = req.OriginalPrice
	}
	if req.Category != nil {
		p.Category = domain.Category(strings.TrimSpace(*req.Category))
	}
	if req.Subcategory != nil {
		p.Subcategory = strings.TrimSpace(*req.Subcategory)
	}
	if req.Brand != nil {
		p.Brand = strings.TrimSpace(*req.Brand)
	}
	skuChanged := false
	if req.SKU != nil {
		sku := normalizeSKU(*req.SKU)
		skuChanged = sku != p.SKU
		p.SKU = sku
	}
	if req.Images != nil {
		p.Images = datatypes.JSONSlice[domain.Image](*req.Images)
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.MinStock != nil {
		p.MinStock = *req.MinStock
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if req.OnSale != nil {
		p.OnSale = *req.OnSale
	}
	if req.SalePercentage != nil {
		p.SalePercentage = *req.SalePercentage
	}
	if req.Tags != nil {
		p.Tags = datatypes.JSONSlice[string](normalizeTags(*req.Tags))
	}
	if req.Specifications != nil {
		p.Specifications = datatypes.JSONSlice[domain.Specification](*req.Specifications)
	}

	p.Price = p.Price.Round(2)
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if skuChanged {
		existing, err := s.repo.FindBySKU(ctx, s.db, p.SKU)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != p.ID {
			return nil, domain.ErrSKUExists
		}
	}

	p.Slug = slug.Make(p.Name + " " + p.SKU)
	p.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSKUExists
		}
		return nil, err
	}

	resp := toResponse(p)
	return &resp, nil
}

// Delete deactivates the product. Order history keeps referencing it.
func (s *Service) Delete(ctx context.Context, id string) error {
	productID, err := parseID(id)
	if err != nil {
		return err
	}
	ok, err := s.repo.Deactivate(ctx, s.db, productID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	s.log.Info("product deactivated", zap.String("product_id", id))
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.DetailResponse, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	p, err := s.FindAvailable(ctx, productID)
	if err != nil {
		return nil, err
	}

	related, err := db.ReadWithRetry(ctx, func(ctx context.Context) ([]domain.Product, error) {
		return s.repo.ListRelated(ctx, s.db, p.Category, p.ID, relatedLimit)
	})
	if err != nil {
		return nil, err
	}

	return &domain.DetailResponse{
		Product: toResponse(p),
		Related: toResponses(related),
	}, nil
}

func (s *Service) GetAny(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(p)
	return &resp, nil
}

func (s *Service) FindAvailable(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := db.ReadWithRetry(ctx, func(ctx context.Context) (*domain.Product, error) {
		return s.repo.FindByID(ctx, s.db, id)
	})
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsActive {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(defaultListLimit)

	category := domain.Category(strings.TrimSpace(req.Category))
	if category != "" && !category.Valid() {
		return nil, domain.ErrInvalidCategory
	}
	if req.MinPrice != nil && req.MaxPrice != nil && req.MinPrice.GreaterThan(*req.MaxPrice) {
		return nil, domain.ErrInvalidPrice
	}

	filter := domain.ListFilter{
		IncludeInactive: req.IncludeInactive,
		Category:        category,
		Search:          strings.TrimSpace(req.Search),
		MinPrice:        req.MinPrice,
		MaxPrice:        req.MaxPrice,
		Featured:        req.Featured,
		OnSale:          req.OnSale,
		SortBy:          strings.TrimSpace(req.SortBy),
		OrderBy:         strings.TrimSpace(req.OrderBy),
		Offset:          page.Offset(),
		Limit:           page.Limit,
	}

	type listResult struct {
		items []domain.Product
		total int64
	}
	result, err := db.ReadWithRetry(ctx, func(ctx context.Context) (listResult, error) {
		items, total, err := s.repo.List(ctx, s.db, filter)
		return listResult{items: items, total: total}, err
	})
	if err != nil {
		return nil, err
	}

	categories, err := s.repo.ListCategories(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []domain.Category{}
	}

	return &domain.ListResponse{
		Products:   toResponses(result.items),
		Categories: categories,
		Pagination: pagination.BuildPageInfo(page, result.total),
	}, nil
}

func (s *Service) ListFeatured(ctx context.Context, limit int) ([]domain.Response, error) {
	featured := true
	return s.highlights(ctx, limit, domain.ListFilter{Featured: &featured, SortBy: "created_at", OrderBy: "desc"})
}

func (s *Service) ListOnSale(ctx context.Context, limit int) ([]domain.Response, error) {
	onSale := true
	return s.highlights(ctx, limit, domain.ListFilter{OnSale: &onSale, SortBy: "sale_percentage", OrderBy: "desc"})
}

func (s *Service) highlights(ctx context.Context, limit int, filter domain.ListFilter) ([]domain.Response, error) {
	if limit <= 0 || limit > pagination.MaxLimit {
		limit = highlightLimit
	}
	filter.Limit = limit
	items, _, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) ListLowStock(ctx context.Context, limit int) ([]domain.Response, error) {
	items, err := db.ReadWithRetry(ctx, func(ctx context.Context) ([]domain.Product, error) {
		return s.repo.ListLowStock(ctx, s.db, limit)
	})
	if err != nil {
		return nil, err
	}
	return toResponses(items), nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.log.Warn("emit event failed", zap.String("event_type", event.Type), zap.Error(err))
	}
}

func validateProduct(p *domain.Product) error {
	if len([]rune(p.Name)) < 2 {
		return domain.ErrInvalidName
	}
	if len([]rune(p.Description)) < 10 {
		return domain.ErrInvalidDescription
	}
	if p.Price.IsNegative() {
		return domain.ErrInvalidPrice
	}
	if p.OriginalPrice != nil && p.OriginalPrice.IsNegative() {
		return domain.ErrInvalidOriginalPrice
	}
	if !p.Category.Valid() {
		return domain.ErrInvalidCategory
	}
	if len(p.SKU) < 3 {
		return domain.ErrInvalidSKU
	}
	if p.Stock < 0 {
		return domain.ErrInvalidStock
	}
	if p.MinStock < 0 {
		return domain.ErrInvalidMinStock
	}
	if p.SalePercentage < 0 || p.SalePercentage > 100 {
		return domain.ErrInvalidSalePercentage
	}
	return nil
}

func parseID(id string) (int64, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || parsed == 0 {
		return 0, domain.ErrInvalidID
	}
	return parsed.Int64(), nil
}

func normalizeSKU(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func toResponses(items []domain.Product) []domain.Response {
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp
}

func toResponse(p *domain.Product) domain.Response {
	images := []domain.Image(p.Images)
	if images == nil {
		images = []domain.Image{}
	}
	tags := []string(p.Tags)
	if tags == nil {
		tags = []string{}
	}
	specs := []domain.Specification(p.Specifications)
	if specs == nil {
		specs = []domain.Specification{}
	}
	return domain.Response{
		ID:             snowflake.ID(p.ID).String(),
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Price:          p.Price,
		OriginalPrice:  p.OriginalPrice,
		Category:       p.Category,
		Subcategory:    p.Subcategory,
		Brand:          p.Brand,
		SKU:            p.SKU,
		Images:         images,
		Stock:          p.Stock,
		MinStock:       p.MinStock,
		LowStock:       p.LowStock(),
		IsActive:       p.IsActive,
		IsFeatured:     p.IsFeatured,
		OnSale:         p.OnSale,
		SalePercentage: p.SalePercentage,
		Tags:           tags,
		Specifications: specs,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

