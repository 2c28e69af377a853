package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
)

// MaybeAutoRun applies pending migrations on boot when the postgres snapshot
// backend is selected and STOREFRONT_DB_AUTO_MIGRATE is set.
func MaybeAutoRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if client == nil || !cfg.DB.AutoMigrate || cfg.Cart.Backend() != config.StoragePostgres {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running goose migrations (auto-run)")

	steps, err := Run(ctx, sqlDB, "up")
	if err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	for _, s := range steps {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"migration_version": s.Version,
			"migration_source":  s.Source,
			"duration_ms":       s.Duration.Milliseconds(),
		}), "migration applied")
	}
	logg.Info(logg.WithField(ctx, "applied", len(steps)), "goose migrations completed")
	return nil
}
