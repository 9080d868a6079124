package models

import "time"

// TaskInstance is one calendar-day occurrence of a task. Title, group and
// routine flag are snapshots taken from the task for display.
type TaskInstance struct {
	ID            uint64    `gorm:"primarykey" json:"id"`
	TaskID        uint64    `gorm:"not null;uniqueIndex:idx_task_instances_task_day" json:"task_id"`
	GroupID       uint64    `gorm:"not null;index" json:"group_id"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title"`
	IsRoutine     bool      `gorm:"not null" json:"is_routine"`
	IsAchievement bool      `gorm:"not null;default:false" json:"is_achievement"`
	OccurredOn    time.Time `gorm:"not null;uniqueIndex:idx_task_instances_task_day;index" json:"occurred_on"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relations
	Task Task `gorm:"foreignKey:TaskID" json:"-"`
}

// NewPendingInstance builds a not-yet-achieved instance of task for day.
func NewPendingInstance(task *Task, day time.Time) *TaskInstance {
	return &TaskInstance{
		TaskID:     task.ID,
		GroupID:    task.GroupID,
		Title:      task.Title,
		IsRoutine:  task.IsRoutine,
		OccurredOn: day,
	}
}
