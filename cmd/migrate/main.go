package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

const serviceName = "migrate"

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate|models")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory; empty uses the embedded set ("+migrate.DefaultDir+" for create)")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()
	return opts
}

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	// create and validate work on files only.
	if done, err := offline(opts); done {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), logger.Fields{
		"env":    cfg.App.Env,
		"cmd":    opts.cmd,
		"driver": cfg.DB.Driver,
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate finished")
}

func offline(opts options) (bool, error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return true, errors.New("missing -name for create")
		}
		dir := opts.dir
		if dir == "" {
			dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(dir, opts.name)
		if err != nil {
			return true, fmt.Errorf("create migration: %w", err)
		}
		fmt.Println("created migration:", path)
		return true, nil
	case "validate":
		source, err := migrate.Source(opts.dir)
		if err != nil {
			return true, fmt.Errorf("open migrations: %w", err)
		}
		if err := migrate.Validate(source); err != nil {
			return true, fmt.Errorf("validate migrations: %w", err)
		}
		fmt.Println("migration validation passed")
		return true, nil
	}
	return false, nil
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer client.Close()

	steps, err := apply(ctx, cfg, client, opts)
	for _, step := range steps {
		logg.Info(logg.WithFields(ctx, logger.Fields{
			"version":     step.Version,
			"path":        step.Path,
			"direction":   step.Direction,
			"applied":     step.Applied,
			"duration_ms": step.Duration.Milliseconds(),
		}), "migration step")
	}
	return err
}

func apply(ctx context.Context, cfg *config.Config, client *db.Client, opts options) ([]migrate.Step, error) {
	if opts.cmd == "models" {
		return nil, migrate.AutoMigrateModels(client.DB())
	}
	if cfg.DB.Driver == config.DriverSQLite {
		return nil, errors.New("goose migrations target postgres; use -cmd=models for sqlite")
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	source, err := migrate.Source(opts.dir)
	if err != nil {
		return nil, err
	}

	switch opts.cmd {
	case "up", "down", "status":
		return migrate.Run(ctx, sqlDB, source, opts.cmd)
	case "version":
		if opts.version == "" {
			return nil, errors.New("missing -version for version command")
		}
		return migrate.MigrateTo(ctx, sqlDB, source, opts.version)
	default:
		return nil, fmt.Errorf("unknown -cmd value %q", opts.cmd)
	}
}
