package repository

import (
	"context"
	"time"

	"github.com/yukikurage/microtask-api/internal/database"
	"github.com/yukikurage/microtask-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInstanceRepository is a GORM implementation of InstanceRepository
type GormInstanceRepository struct {
	db *gorm.DB
}

// NewInstanceRepository creates a new InstanceRepository
func NewInstanceRepository(db *gorm.DB) InstanceRepository {
	return &GormInstanceRepository{db: db}
}

// Create creates a new instance
func (r *GormInstanceRepository) Create(ctx context.Context, instance *models.TaskInstance) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(instance).Error
}

// CreateIfAbsent relies on the (task_id, occurred_on) unique index to skip duplicates
func (r *GormInstanceRepository) CreateIfAbsent(ctx context.Context, instance *models.TaskInstance) (bool, error) {
	result := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "occurred_on"}},
			DoNothing: true,
		}).
		Create(instance)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByID finds an instance by ID
func (r *GormInstanceRepository) FindByID(ctx context.Context, id uint64) (*models.TaskInstance, error) {
	var instance models.TaskInstance
	if err := r.db.WithContext(ctx).First(&instance, id).Error; err != nil {
		return nil, err
	}
	return &instance, nil
}

// FindByIDForUpdate locks the instance row, then loads its task and the task's group
func (r *GormInstanceRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*models.TaskInstance, error) {
	var instance models.TaskInstance
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&instance, id).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Preload("Group").
		First(&instance.Task, instance.TaskID).Error; err != nil {
		return nil, err
	}

	return &instance, nil
}

// ExistsForTaskOn reports whether the task already has an instance on day
func (r *GormInstanceRepository) ExistsForTaskOn(ctx context.Context, taskID uint64, day time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.TaskInstance{}).
		Where("task_id = ? AND occurred_on = ?", taskID, day).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByUserBetween lists the user's instances in [start, end)
func (r *GormInstanceRepository) ListByUserBetween(ctx context.Context, userID uint64, start, end time.Time) ([]models.TaskInstance, error) {
	var instances []models.TaskInstance
	if err := r.db.WithContext(ctx).
		Scopes(
			database.OwnedByUser("task_instances", userID),
			database.OccurredBetween(start, end),
		).
		Order("task_instances.occurred_on").
		Order("task_instances.id").
		Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

// RelinkTask copies the task's current snapshot fields into its instances
func (r *GormInstanceRepository) RelinkTask(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).
		Model(&models.TaskInstance{}).
		Where("task_id = ?", task.ID).
		Updates(map[string]interface{}{
			"title":      task.Title,
			"group_id":   task.GroupID,
			"is_routine": task.IsRoutine,
		}).Error
}

// SetAchievement performs a compare-and-set on the achievement flag
func (r *GormInstanceRepository) SetAchievement(ctx context.Context, id uint64, from, to bool) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.TaskInstance{}).
		Where("id = ? AND is_achievement = ?", id, from).
		Update("is_achievement", to)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// DeleteByTaskID removes every instance of the task
func (r *GormInstanceRepository) DeleteByTaskID(ctx context.Context, taskID uint64) error {
	return r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Delete(&models.TaskInstance{}).Error
}
