package seed

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/backoffice/internal/auth/password"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

//go:embed catalog.json
var defaultCatalog []byte

type catalogItem struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price"`
	OriginalPrice  *decimal.Decimal `json:"original_price"`
	Category       string           `json:"category"`
	Brand          string           `json:"brand"`
	SKU            string           `json:"sku"`
	Stock          int              `json:"stock"`
	MinStock       int              `json:"min_stock"`
	IsFeatured     bool             `json:"is_featured"`
	OnSale         bool             `json:"on_sale"`
	SalePercentage int              `json:"sale_percentage"`
	Tags           []string         `json:"tags"`
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	GenID  *snowflake.Node
	Clock  clock.Clock
}

type Seeder struct {
	db    *gorm.DB
	log   *zap.Logger
	cfg   config.SeedConfig
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) *Seeder {
	return &Seeder{
		db:    p.DB,
		log:   p.Log.Named("seed"),
		cfg:   p.Config.Seed,
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Run seeds the admin account and the default catalog. Both steps are
// idempotent.
func (s *Seeder) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	if err := s.EnsureAdmin(ctx); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if s.cfg.Catalog {
		if err := s.EnsureCatalog(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	return nil
}

// EnsureAdmin creates the configured admin when no user holds its email.
// An existing account is left untouched.
func (s *Seeder) EnsureAdmin(ctx context.Context) error {
	email := strings.ToLower(strings.TrimSpace(s.cfg.AdminEmail))
	if email == "" || s.cfg.AdminPassword == "" {
		s.log.Info("admin seed skipped, no credentials configured")
		return nil
	}

	var existing userdomain.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := password.Hash(s.cfg.AdminPassword)
	if err != nil {
		return err
	}
	name := strings.TrimSpace(s.cfg.AdminName)
	if name == "" {
		name = "Administrator"
	}

	now := s.clock.Now()
	user := userdomain.User{
		ID:           s.genID.Generate().Int64(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         authcontext.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return err
	}
	s.log.Info("admin user seeded", zap.String("email", email))
	return nil
}

// EnsureCatalog loads the bundled catalog into an empty product table.
func (s *Seeder) EnsureCatalog(ctx context.Context) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&productdomain.Product{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var items []catalogItem
	if err := json.Unmarshal(defaultCatalog, &items); err != nil {
		return err
	}

	now := s.clock.Now()
	products := make([]productdomain.Product, 0, len(items))
	for _, item := range items {
		category := productdomain.Category(item.Category)
		if !category.Valid() {
			return fmt.Errorf("catalog item %s has unknown category %q", item.SKU, item.Category)
		}
		products = append(products, productdomain.Product{
			ID:             s.genID.Generate().Int64(),
			Name:           item.Name,
			Slug:           slug.Make(item.Name),
			Description:    item.Description,
			Price:          item.Price,
			OriginalPrice:  item.OriginalPrice,
			Category:       category,
			Brand:          item.Brand,
			SKU:            strings.ToUpper(item.SKU),
			Images:         datatypes.JSONSlice[productdomain.Image]{},
			Stock:          item.Stock,
			MinStock:       item.MinStock,
			IsActive:       true,
			IsFeatured:     item.IsFeatured,
			OnSale:         item.OnSale,
			SalePercentage: item.SalePercentage,
			Tags:           datatypes.JSONSlice[string](item.Tags),
			Specifications: datatypes.JSONSlice[productdomain.Specification]{},
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := s.db.WithContext(ctx).CreateInBatches(products, 50).Error; err != nil {
		return err
	}
	s.log.Info("default catalog seeded", zap.Int("products", len(products)))
	return nil
}
