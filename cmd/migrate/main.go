package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	product "github.com/liminara/storefront/internal/products"
	"github.com/liminara/storefront/internal/users"
	"github.com/liminara/storefront/pkg/config"
	"github.com/liminara/storefront/pkg/db"
	"github.com/liminara/storefront/pkg/enums"
	"github.com/liminara/storefront/pkg/logger"
	"github.com/liminara/storefront/pkg/migrate"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate|seed|grant")
	dir := flag.String("dir", migrate.DefaultDir, "migrations directory for create and validate")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	identifier := flag.String("identifier", "", "email or phone of the account (for grant)")
	role := flag.String("role", "", "role to assign: customer|admin|agent (for grant)")

	flag.Parse()

	// create and validate only touch the filesystem.
	switch *cmd {
	case "create":
		if *name == "" {
			fmt.Fprintln(os.Stderr, "missing -name for create")
			os.Exit(1)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to create migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("created migration:", path)
		return

	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, cfg.DB.Driver, *cmd); err != nil {
			fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
			os.Exit(1)
		}

	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, cfg.DB.Driver, *version); err != nil {
			fmt.Fprintf(os.Stderr, "goose version migrate failed: %v\n", err)
			os.Exit(1)
		}

	case "seed":
		if cfg.App.IsProd() {
			fmt.Fprintln(os.Stderr, "seed is disabled in production")
			os.Exit(1)
		}
		n, err := product.NewRepository(dbClient.DB()).InsertMissing(ctx, demoCatalog())
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		logg.Info(logg.WithField(ctx, "inserted", n), "catalog seeded")

	case "grant":
		parsed, err := enums.ParseUserRole(*role)
		if err != nil || *identifier == "" {
			fmt.Fprintln(os.Stderr, "grant needs -identifier and a valid -role")
			os.Exit(1)
		}
		repo := users.NewRepository(dbClient.DB())
		user, created, err := repo.FindOrCreateByIdentifier(ctx, *identifier)
		if err != nil {
			fmt.Fprintf(os.Stderr, "grant failed: %v\n", err)
			os.Exit(1)
		}
		if err := repo.UpdateRole(ctx, user.ID, parsed); err != nil {
			fmt.Fprintf(os.Stderr, "grant failed: %v\n", err)
			os.Exit(1)
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"user_id": user.ID.String(),
			"role":    parsed.String(),
			"created": created,
		}), "role granted")

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
