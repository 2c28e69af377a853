package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-cart/internal/persistence"
	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db"
	"github.com/angelmondragon/storefront-cart/pkg/logger"
	"github.com/angelmondragon/storefront-cart/pkg/migrate"
)

const serviceName = "cart-migrate"

type flags struct {
	dir     string
	name    string
	version string
}

// offline commands need neither config nor a database.
var offline = map[string]func(flags) error{
	"create": func(f flags) error {
		if f.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(f.dir, f.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(flags) error {
		if err := migrate.Validate(); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

type onlineFunc func(ctx context.Context, cfg *config.Config, client *db.Client, pool *sql.DB, f flags) error

var online = map[string]onlineFunc{
	"up":     goose("up"),
	"down":   goose("down"),
	"status": goose("status"),
	"version": func(ctx context.Context, _ *config.Config, _ *db.Client, pool *sql.DB, f flags) error {
		if f.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return report(migrate.MigrateToVersion(ctx, pool, f.version))
	},
	// purge drops expired cart snapshots once, outside the API's scheduler.
	"purge": func(ctx context.Context, cfg *config.Config, client *db.Client, _ *sql.DB, _ flags) error {
		store, err := persistence.NewGormStorage(client, cfg.Cart.SnapshotTTL)
		if err != nil {
			return err
		}
		n, err := store.PurgeExpired(ctx, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired cart snapshots\n", n)
		return nil
	},
}

func goose(command string) onlineFunc {
	return func(ctx context.Context, _ *config.Config, _ *db.Client, pool *sql.DB, _ flags) error {
		return report(migrate.Run(ctx, pool, command))
	}
}

// report prints what ran before passing err on; a partial up still lists what it applied.
func report(steps []migrate.Step, err error) error {
	for _, s := range steps {
		fmt.Println(s)
	}
	if err == nil && len(steps) == 0 {
		fmt.Println("nothing to do")
	}
	return err
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceName})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+commandList())
	var f flags
	flag.StringVar(&f.dir, "dir", migrate.DefaultDir, "directory for -cmd=create")
	flag.StringVar(&f.name, "name", "", "migration name (for create)")
	flag.StringVar(&f.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	if run, ok := offline[*cmd]; ok {
		if err := run(f); err != nil {
			fmt.Fprintf(os.Stderr, "%s failed: %v\n", *cmd, err)
			os.Exit(1)
		}
		return
	}
	run, ok := online[*cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown -cmd %q (want %s)\n", *cmd, commandList())
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Static:      map[string]any{"env": cfg.App.Env, "cmd": *cmd},
	})

	client, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer client.Close()

	pool, err := client.SQL()
	requireResource(ctx, logg, "sql database", err)

	if err := run(ctx, cfg, client, pool, f); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate command finished")
}

func commandList() string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
