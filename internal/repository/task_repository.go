package repository

import (
	"context"
	"time"

	"github.com/yukikurage/microtask-api/internal/database"
	"github.com/yukikurage/microtask-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db.WithContext(ctx)

	// Apply preloading if specified
	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByIDForUpdate locks the task row and then loads its group
func (r *GormTaskRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&task, id).Error; err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).First(&task.Group, task.GroupID).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// Update updates a task
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(task).Error
}

// Delete removes the task row. Links and instances must be removed first.
func (r *GormTaskRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&models.Task{}, id).Error
}

// ListByGroupID lists the tasks of a group with their period links
func (r *GormTaskRepository) ListByGroupID(ctx context.Context, groupID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Preload("Periods", orderByPeriod).
		Where("group_id = ?", groupID).
		Order("id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListRoutineByUser lists the user's routine tasks with their period links
func (r *GormTaskRepository) ListRoutineByUser(ctx context.Context, userID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Scopes(database.OwnedByUser("tasks", userID)).
		Preload("Periods", orderByPeriod).
		Where("tasks.is_routine = ?", true).
		Order("tasks.id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListOneTimeByUser lists the user's non-routine tasks
func (r *GormTaskRepository) ListOneTimeByUser(ctx context.Context, userID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Scopes(database.OwnedByUser("tasks", userID)).
		Where("tasks.is_routine = ?", false).
		Order("tasks.id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListRoutineForWeekday lists the user's routine tasks that recur on weekday and are still active on day
func (r *GormTaskRepository) ListRoutineForWeekday(ctx context.Context, userID uint64, weekday int, day time.Time) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.WithContext(ctx).
		Scopes(database.OwnedByUser("tasks", userID), database.ActiveOn("tasks", day)).
		Joins("JOIN task_periods ON task_periods.task_id = tasks.id").
		Where("tasks.is_routine = ?", true).
		Where("task_periods.period_id = ?", weekday).
		Order("tasks.id").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListPeriodLinks returns the task's period links
func (r *GormTaskRepository) ListPeriodLinks(ctx context.Context, taskID uint64) ([]models.TaskPeriod, error) {
	var links []models.TaskPeriod
	if err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("period_id").
		Find(&links).Error; err != nil {
		return nil, err
	}
	return links, nil
}

// AddPeriods links the task to each period
func (r *GormTaskRepository) AddPeriods(ctx context.Context, taskID uint64, periodIDs []uint64) error {
	if len(periodIDs) == 0 {
		return nil
	}

	links := make([]models.TaskPeriod, len(periodIDs))
	for i, periodID := range periodIDs {
		links[i] = models.TaskPeriod{
			TaskID:   taskID,
			PeriodID: periodID,
		}
	}

	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links).Error
}

// RemovePeriods unlinks the task from each period
func (r *GormTaskRepository) RemovePeriods(ctx context.Context, taskID uint64, periodIDs []uint64) error {
	if len(periodIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("task_id = ? AND period_id IN ?", taskID, periodIDs).
		Delete(&models.TaskPeriod{}).Error
}

// DeleteAllPeriods removes every period link of the task
func (r *GormTaskRepository) DeleteAllPeriods(ctx context.Context, taskID uint64) error {
	return r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Delete(&models.TaskPeriod{}).Error
}

// IncrementAchievement increments the counter in the database
func (r *GormTaskRepository) IncrementAchievement(ctx context.Context, taskID uint64) error {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", taskID).
		UpdateColumn("achievement_count", gorm.Expr("achievement_count + ?", 1)).Error
}

// DecrementAchievement decrements the counter in the database, clamped at zero
func (r *GormTaskRepository) DecrementAchievement(ctx context.Context, taskID uint64) error {
	return r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ?", taskID).
		UpdateColumn("achievement_count", gorm.Expr("CASE WHEN achievement_count > 0 THEN achievement_count - 1 ELSE 0 END")).Error
}

func orderByPeriod(db *gorm.DB) *gorm.DB {
	return db.Order("period_id")
}
