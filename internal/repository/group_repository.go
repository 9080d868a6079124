package repository

import (
	"context"
	"time"

	"github.com/yukikurage/microtask-api/internal/database"
	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormGroupRepository is a GORM implementation of GroupRepository
type GormGroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository creates a new GroupRepository
func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &GormGroupRepository{db: db}
}

// Create creates a new group
func (r *GormGroupRepository) Create(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Create(group).Error
}

// FindByID finds a group by ID with optional preloading
func (r *GormGroupRepository) FindByID(ctx context.Context, id uint64, preload ...string) (*models.Group, error) {
	var group models.Group
	query := r.db.WithContext(ctx)

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// FindByIDForUpdate locks the group row so concurrent task creation is serialized per group
func (r *GormGroupRepository) FindByIDForUpdate(ctx context.Context, id uint64) (*models.Group, error) {
	var group models.Group
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// ListByUserID lists the user's groups in creation order
func (r *GormGroupRepository) ListByUserID(ctx context.Context, userID uint64, page utils.PaginationParams) ([]models.Group, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Group{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var groups []models.Group
	if err := query.
		Scopes(database.Paginate(page)).
		Order("id").
		Find(&groups).Error; err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// Update updates a group
func (r *GormGroupRepository) Update(ctx context.Context, group *models.Group) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(group).Error
}

// Delete deletes a group and all related data in a transaction
func (r *GormGroupRepository) Delete(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("group_id = ?", id)

		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.TaskInstance{}).Error; err != nil {
			return err
		}

		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.TaskPeriod{}).Error; err != nil {
			return err
		}

		if err := tx.Where("group_id = ?", id).Delete(&models.Task{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Group{}, id).Error
	})
}

// CountActiveTasks counts tasks that have not ended as of day
func (r *GormGroupRepository) CountActiveTasks(ctx context.Context, groupID uint64, day time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("group_id = ?", groupID).
		Where("end_at IS NULL OR end_at > ?", day).
		Count(&count).Error
	return count, err
}
