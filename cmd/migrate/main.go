package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "migration command: up|down|status|version|create|validate|seed")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem.
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			exitf("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		count, err := migrate.ValidateDir(opts.dir)
		if err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Printf("migration validation passed (%d files)\n", count)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"dir":    opts.dir,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer dbClient.Close()

	if err := run(ctx, opts, dbClient, logg); err != nil {
		logg.Error(ctx, "migrate.failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate.done")
}

func run(ctx context.Context, opts options, dbClient *db.Client, logg *logger.Logger) error {
	if opts.cmd == "seed" {
		return seed(ctx, dbClient, logg)
	}

	if dbClient.Driver() == config.DBDriverSQLite {
		if opts.cmd != "up" {
			return fmt.Errorf("-cmd=%s needs postgres; sqlite only supports up and seed", opts.cmd)
		}
		if err := migrate.AutoMigrateModels(ctx, dbClient.DB()); err != nil {
			return err
		}
		return seed(ctx, dbClient, logg)
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return fmt.Errorf("sql database: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, opts.dir, logg)
	if err != nil {
		return err
	}

	switch opts.cmd {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "version":
		return runner.To(ctx, opts.version)
	case "status":
		steps, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range steps {
			state := "pending"
			if s.Applied {
				state = "applied " + time.UnixMilli(s.AppliedAt).UTC().Format(time.RFC3339)
			}
			fmt.Printf("%d\t%s\t%s\n", s.Version, s.Path, state)
		}
		return nil
	default:
		return fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}

func seed(ctx context.Context, dbClient *db.Client, logg *logger.Logger) error {
	var inserted int64
	err := dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		n, err := migrate.SeedCatalog(ctx, tx)
		inserted = n
		return err
	})
	if err != nil {
		return err
	}
	logg.Info(logg.WithField(ctx, "inserted", inserted), "catalog seed applied")
	return nil
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
