package database

import (
	"fmt"
	"log/slog"

	"github.com/yukikurage/microtask-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Migrate creates or updates every table and seeds the weekday periods.
func Migrate(db *gorm.DB) error {
	slog.Info("running database migrations")
	err := db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Period{},
		&models.Task{},
		&models.TaskPeriod{},
		&models.TaskInstance{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := SeedPeriods(db); err != nil {
		return err
	}

	slog.Info("database migrations completed")
	return nil
}

// SeedPeriods inserts Mon..Sun with ids 1..7. Existing rows are left untouched.
func SeedPeriods(db *gorm.DB) error {
	periods := make([]models.Period, len(models.Weekdays))
	copy(periods, models.Weekdays)

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&periods).Error; err != nil {
		return fmt.Errorf("failed to seed periods: %w", err)
	}
	return nil
}
