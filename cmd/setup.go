package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/amply/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example config to --config unless a file is already there.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err == nil {
		r.logger.Info("config file already exists", "path", configPath)
		r.writePlain("Config already present at %s\n", configPath)
		return nil
	}

	if err := shared.CreateConfigFile(configPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	r.logger.Info("config file created", "path", configPath)
	r.writePlain("✓ Wrote %s\n", configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret (or SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET)\n")
	r.writePlain("2. Set supabase.jwt_secret (or SUPABASE_JWT_SECRET)\n")
	r.writePlain("3. Run 'amply setup database' and then 'amply serve'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
//
// A missing config file is created from the template first.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		}
	}

	config, err := shared.ResolveConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "error", err)
		config = shared.DefaultConfig()
	}

	r.logger.Info("initializing database", "driver", config.Database.Driver, "path", config.Database.Path)

	db, err := shared.OpenFromConfig(config.Database)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		version, err := shared.CurrentVersion(ctx, db)
		if err != nil {
			return err
		}
		r.writePlain("✓ Rolled back, schema now at version %d\n", version)
		return nil
	}

	r.logger.Info("running database migrations")
	if err := shared.RunMigrationsContext(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := shared.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Source())
	r.writePlain("✓ Database ready at schema version %d\n", version)
	return nil
}
