package migration

import (
	"context"

	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, seeder *seed.Seeder) error {
		if err := Run(conn, cfg.DBType); err != nil {
			return err
		}
		return seeder.Run(context.Background())
	}),
)
