package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/templui/thrive/internal/config"
	"github.com/templui/thrive/internal/db"
	"github.com/templui/thrive/internal/logger"
)

func MigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			flush := logger.Init(logger.Options{Development: cfg.IsDevelopment(), Environment: cfg.AppEnv})
			defer flush()

			database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()

			if down {
				return db.MigrateDown(database.DB, cfg.DBDriver)
			}
			if err := db.RunMigrations(database.DB, cfg.DBDriver); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			slog.Info("migrations applied", "driver", cfg.DBDriver)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration")
	return cmd
}
