package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/yukikurage/microtask-api/internal/config"
	"github.com/yukikurage/microtask-api/internal/database"
	"github.com/yukikurage/microtask-api/internal/logger"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/services"
	"github.com/yukikurage/microtask-api/internal/utils"
)

var (
	cfg *config.Config
	loc *time.Location
)

var rootCmd = &cobra.Command{
	Use:   "microtask",
	Short: "Micro-task habit tracker API",
	Long: `microtask serves the micro-task API and runs its maintenance jobs.
Routine tasks recur on weekdays and get a fresh instance every day.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logger.Setup(cfg.LogLevel)

		loc, err = cfg.Location()
		if err != nil {
			return fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(materializeCmd)
}

// connect opens the configured database and brings the schema up to date.
func connect() error {
	if err := database.Connect(cfg, logger.GormLevel(cfg.LogLevel)); err != nil {
		return err
	}
	if err := database.Migrate(database.GetDB()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// newTaskService wires the task service against the shared database.
func newTaskService(aiService *services.AIService) *services.TaskService {
	db := database.GetDB()
	return services.NewTaskService(
		repository.NewRepositories(db),
		repository.NewUnitOfWork(db),
		utils.NewSystemClock(loc),
		aiService,
	)
}
