package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/angelmondragon/storefront-cart/api/routes"
	"github.com/angelmondragon/storefront-cart/internal/cron"
	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/internal/rewards"
	"github.com/angelmondragon/storefront-cart/internal/seed"
	"github.com/angelmondragon/storefront-cart/internal/session"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/metrics"
)

const serviceName = "storefront-cart"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Static: map[string]any{
			"env":       cfg.App.Env,
			"namespace": cfg.Cart.Namespace,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.TraceContext{})

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)
	rewardMetrics := metrics.NewRewardSyncMetrics(registry)
	jobMetrics := metrics.NewJobMetrics(registry)

	store, err := openBackend(ctx, cfg, logg)
	requireResource(ctx, logg, "storage", err)
	defer store.Close(context.Background(), logg)

	layer, err := persistence.NewLayer(store.snapshots, persistence.Options{
		Namespace: cfg.Cart.Namespace,
		Timeout:   cfg.Cart.StorageTimeout,
		Logger:    logg,
		Metrics:   cartMetrics,
	})
	requireResource(ctx, logg, "persistence layer", err)

	var rewardClient rewards.Client
	if cfg.Rewards.Enabled() {
		httpClient, err := rewards.NewHTTPClient(cfg.Rewards.EndpointURL, cfg.Rewards.Timeout, otel.Tracer(serviceName+"/rewards"))
		requireResource(ctx, logg, "rewards client", err)
		rewardClient = httpClient
	} else {
		logg.Warn(ctx, "STOREFRONT_REWARDS_URL not set; reward sync disabled")
	}

	manager, err := session.NewManager(func(scope string) (*session.Session, error) {
		return session.New(scope, session.Options{
			Layer:          layer,
			Rewards:        rewardClient,
			RewardDebounce: cfg.Rewards.Debounce,
			Logger:         logg.Component("session"),
			CartMetrics:    cartMetrics,
			RewardMetrics:  rewardMetrics,
		})
	}, session.ManagerOptions{
		IdleTTL:     cfg.Cart.SessionIdleTTL,
		Logger:      logg,
		CartMetrics: cartMetrics,
	})
	requireResource(ctx, logg, "session manager", err)
	defer manager.Close()

	ingestor, err := seed.NewIngestor(store.notices, seed.Options{
		CookieName: cfg.Seed.CookieName,
		NoticeTTL:  cfg.Seed.NoticeTTL,
		Defaults: seed.Attribution{
			Source:   cfg.Seed.DefaultSource,
			Medium:   cfg.Seed.DefaultMedium,
			Campaign: cfg.Seed.DefaultCampaign,
		},
		Logger:  logg,
		Metrics: cartMetrics,
	})
	requireResource(ctx, logg, "seed ingestor", err)

	schedulers, err := buildSchedulers(cfg, logg, manager, store, jobMetrics)
	requireResource(ctx, logg, "maintenance schedulers", err)
	for _, scheduler := range schedulers {
		go func(s *cron.Service) {
			if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "maintenance scheduler stopped", err)
			}
		}(scheduler)
	}

	readiness := store.readiness
	readiness["cart"] = layer

	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	serverCtx := logg.WithFields(ctx, map[string]any{
		"addr":    addr,
		"storage": cfg.Cart.Backend(),
	})

	deps := routes.Dependencies{
		Sessions:  manager,
		Seeder:    ingestor,
		Gatherer:  registry,
		Readiness: readiness,
	}
	if store.kv != nil {
		deps.Replay = store.kv
		deps.Limiter = store.kv
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting cart api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	logg.Info(serverCtx, "shutting down cart api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "graceful shutdown failed", err)
	}
}

// purgeJobTimeout stays under the purge lock TTL so a slow purge never outlives its lock.
const purgeJobTimeout = 4 * time.Minute

func buildSchedulers(cfg *config.Config, logg *logger.Logger, manager *session.Manager, store *backend, jobMetrics *metrics.JobMetrics) ([]*cron.Service, error) {
	logg = logg.Component("maintenance")
	sweep, err := cron.NewSessionSweepJob(manager, logg)
	if err != nil {
		return nil, err
	}
	local, err := cron.NewRegistry(sweep)
	if err != nil {
		return nil, err
	}
	sweeper, err := cron.NewService(cron.ServiceParams{
		Name:     "session-sweep",
		Logger:   logg,
		Registry: local,
		Metrics:  jobMetrics,
		Interval: cfg.Cart.SweepInterval,
	})
	if err != nil {
		return nil, err
	}
	services := []*cron.Service{sweeper}

	if store.purge == nil {
		return services, nil
	}
	purge, err := cron.NewSnapshotPurgeJob(store.purge, logg)
	if err != nil {
		return nil, err
	}
	shared, err := cron.NewRegistry(purge)
	if err != nil {
		return nil, err
	}
	purger, err := cron.NewService(cron.ServiceParams{
		Name:       "snapshot-purge",
		Logger:     logg,
		Registry:   shared,
		Lock:       store.purgeLock,
		Metrics:    jobMetrics,
		Interval:   cfg.Cart.PurgeInterval,
		JobTimeout: purgeJobTimeout,
		RunOnStart: true,
	})
	if err != nil {
		return nil, err
	}
	return append(services, purger), nil
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
