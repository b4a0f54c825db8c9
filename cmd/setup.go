package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/aehx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a config file when none exists and initializes the cache database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if config, err := shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		} else {
			r.config = config
		}
	}

	if url := cmd.String("base-url"); url != "" {
		r.config.Server.BaseURL = url
		if err := shared.SaveConfig(configPath, r.config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		r.logger.Info("base url saved", "url", url)
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)

	r.writePlain("✓ Config: %s\n", configPath)
	r.writePlain("✓ Database: %s\n", r.config.Database.Path)
	r.writePlainln("Next steps:")
	r.writePlain("1. Check server.base_url in %s (currently %s)\n", configPath, r.config.Server.BaseURL)
	r.writePlain("2. Run 'aehx auth login <username>' or 'aehx auth import --curl-file request.txt'\n")
	return nil
}
