package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-cart/api/controllers"
	"github.com/angelmondragon/storefront-cart/internal/cron"
	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/internal/seed"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/migrate"
	"github.com/angelmondragon/storefront-cart/pkg/redis"
)

const purgeLockName = "snapshot-purge"

// backend is the storage selected by STOREFRONT_CART_STORAGE plus what it takes to shut it down.
type backend struct {
	snapshots persistence.Storage
	notices   seed.NoticeStore
	readiness map[string]controllers.Pinger
	// purge is non-nil only for the relational store; redis expires keys itself.
	purge     *persistence.GormStorage
	purgeLock cron.Lock
	// kv backs idempotent replays and rate limiting when redis is reachable.
	kv        *redis.Client
	closers   []func() error
}

func (b *backend) Close(ctx context.Context, logg *logger.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logg.Error(ctx, "error closing storage backend", err)
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*backend, error) {
	b := &backend{readiness: map[string]controllers.Pinger{}}

	switch cfg.Cart.Backend() {
	case config.StorageMemory:
		logg.Warn(ctx, "using in-memory cart storage; carts do not survive restarts")
		memory := persistence.NewMemoryStorage()
		b.snapshots = memory
		b.notices = seed.NewMemoryNoticeStore()
		b.readiness["storage"] = memory

	case config.StorageRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		snapshots, err := persistence.NewRedisStorage(client, cfg.Cart.SnapshotTTL)
		if err != nil {
			return nil, err
		}
		notices, err := seed.NewRedisNoticeStore(client)
		if err != nil {
			return nil, err
		}
		b.snapshots = snapshots
		b.notices = notices
		b.kv = client
		b.readiness["redis"] = client

	case config.StoragePostgres:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		if err := migrate.MaybeAutoRun(ctx, cfg, logg, client); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
		snapshots, err := persistence.NewGormStorage(client, cfg.Cart.SnapshotTTL)
		if err != nil {
			return nil, err
		}
		b.snapshots = snapshots
		b.purge = snapshots
		b.readiness["postgres"] = client

		// Notices are short lived; keep them in redis when one is configured so every
		// instance sees them, else fall back to this process.
		b.notices = seed.NewMemoryNoticeStore()
		if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
			rc, err := redis.New(ctx, cfg.Redis, logg)
			if err != nil {
				return nil, fmt.Errorf("bootstrap redis: %w", err)
			}
			b.closers = append(b.closers, rc.Close)
			notices, err := seed.NewRedisNoticeStore(rc)
			if err != nil {
				return nil, err
			}
			lock, err := cron.NewRedisLock(rc, rc.LockKey(purgeLockName), 0)
			if err != nil {
				return nil, err
			}
			b.notices = notices
			b.purgeLock = lock
			b.kv = rc
			b.readiness["redis"] = rc
		}

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Cart.StorageBackend)
	}
	return b, nil
}
