package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"gorm.io/gorm"
)

// MaybeRunDev prepares the schema at startup.
//
// On sqlite the schema always comes from the GORM models and the catalog seed
// is applied when enabled. On Postgres goose runs only in dev with the
// auto-migrate flag set; the seed ships inside the SQL migrations.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client.Driver() == config.DBDriverSQLite {
		ctx = logg.WithField(ctx, "driver", config.DBDriverSQLite)
		if err := AutoMigrateModels(ctx, client.DB()); err != nil {
			return err
		}
		if cfg.FeatureFlags.SeedCatalog {
			var n int64
			if err := client.WithTx(ctx, func(tx *gorm.DB) error {
				var err error
				n, err = SeedCatalog(ctx, tx)
				return err
			}); err != nil {
				return err
			}
			logg.Info(logg.WithField(ctx, "inserted", n), "catalog seed applied")
		}
		logg.Info(ctx, "sqlite schema ready")
		return nil
	}

	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	runner, err := NewRunner(sqlDB, DefaultDir, logg)
	if err != nil {
		return err
	}
	if err := runner.Up(ctx); err != nil {
		return err
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// AutoMigrateModels creates the storefront tables from the GORM models.
func AutoMigrateModels(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	if err := conn.WithContext(ctx).AutoMigrate(&models.User{}, &models.Item{}, &models.Cart{}, &models.CartLine{}); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}
	return nil
}
