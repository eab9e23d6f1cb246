package migrate

import (
	"context"
	"fmt"

	"github.com/sweetshop/sweetshop-backend/pkg/config"
	"github.com/sweetshop/sweetshop-backend/pkg/db"
	"github.com/sweetshop/sweetshop-backend/pkg/db/models"
	"github.com/sweetshop/sweetshop-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date at API startup.
//
// SQLite is always synced from the models because the goose files are
// written for Postgres. Postgres applies the embedded migrations only when
// running in dev with SWEETSHOP_AUTO_MIGRATE set; other environments run
// cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch {
	case cfg.DB.IsSQLite():
		logg.Info(logg.WithField(ctx, "driver", config.DBDriverSQLite), "migration.sqlite_sync")
		return AutoMigrateModels(client)
	case !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate:
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "source": "embedded"})
	logg.Info(ctx, "migration.dev_autorun")
	return Run(ctx, sqlDB, "", "up", logg)
}

// AutoMigrateModels creates or alters tables to match the gorm models.
func AutoMigrateModels(client *db.Client) error {
	if err := client.DB().AutoMigrate(&models.User{}, &models.Sweet{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
