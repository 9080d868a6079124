package repository

import (
	"context"

	"github.com/yukikurage/microtask-api/internal/models"
	"gorm.io/gorm"
)

// GormPeriodRepository is a GORM implementation of PeriodRepository
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewPeriodRepository creates a new PeriodRepository
func NewPeriodRepository(db *gorm.DB) PeriodRepository {
	return &GormPeriodRepository{db: db}
}

// FindAll returns Mon..Sun
func (r *GormPeriodRepository) FindAll(ctx context.Context) ([]models.Period, error) {
	var periods []models.Period
	if err := r.db.WithContext(ctx).Order("id").Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

// FindByTaskID returns the periods linked to a task
func (r *GormPeriodRepository) FindByTaskID(ctx context.Context, taskID uint64) ([]models.Period, error) {
	var periods []models.Period
	if err := r.db.WithContext(ctx).
		Joins("JOIN task_periods ON task_periods.period_id = periods.id").
		Where("task_periods.task_id = ?", taskID).
		Order("periods.id").
		Find(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}
