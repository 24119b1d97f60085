package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lpsaring/lpsaring/internal/infrastructure/config"
	"github.com/lpsaring/lpsaring/internal/infrastructure/database"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Init(&cfg.Logger); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			log := logger.NewLogger()

			if err := database.Init(&cfg.Database); err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			defer database.Close()

			if err := database.Migrate(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			log.Infow("migrations applied")
			return nil
		},
	}
}
