package database

import (
	"fmt"
	"time"

	"github.com/yukikurage/microtask-api/internal/utils"
	"gorm.io/gorm"
)

// OwnedByUser restricts rows of table to groups owned by userID. The table must carry a group_id column.
func OwnedByUser(table string, userID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Joins(fmt.Sprintf("JOIN task_groups ON task_groups.id = %s.group_id", table)).
			Where("task_groups.user_id = ?", userID)
	}
}

// OccurredBetween restricts task instances to the half-open day range [start, end).
func OccurredBetween(start, end time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("task_instances.occurred_on >= ? AND task_instances.occurred_on < ?", start, end)
	}
}

// ActiveOn keeps rows whose end_at is unset or strictly after day.
func ActiveOn(table string, day time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(fmt.Sprintf("%s.end_at IS NULL OR %s.end_at > ?", table, table), day)
	}
}

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}
