package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/desertthunder/swiper/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConfigInit writes the example configuration file.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("path")
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Wrote %s\n", path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or CLIENT_ID / CLIENT_SECRET)\n")
	r.writePlain("2. Run 'swiper serve', then 'swiper login'\n")
	return nil
}

// DBMigrate applies pending preference store migrations.
func (r *Runner) DBMigrate(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("running database migrations", "path", r.config.Database.Path)
	if err := shared.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return r.writeVersions(ctx, db)
}

// DBRollback rolls back the latest applied migration.
func (r *Runner) DBRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("rolling back latest migration", "path", r.config.Database.Path)
	if err := shared.RollbackMigration(ctx, db); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return r.writeVersions(ctx, db)
}

func (r *Runner) openDatabase() (*sql.DB, error) {
	cfg := r.config.Database
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: database.path is empty, preferences are kept in memory", shared.ErrMissingConfig)
	}

	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	return db, nil
}

func (r *Runner) writeVersions(ctx context.Context, db *sql.DB) error {
	versions, err := shared.AppliedVersions(ctx, db)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Applied migrations: %v\n", versions)
}
