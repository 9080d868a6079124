package models

// TaskPeriod links a task to one weekday it recurs on.
type TaskPeriod struct {
	TaskID   uint64 `gorm:"primarykey" json:"task_id"`
	PeriodID uint64 `gorm:"primarykey" json:"period_id"`

	// Relations
	Task   Task   `gorm:"foreignKey:TaskID" json:"-"`
	Period Period `gorm:"foreignKey:PeriodID" json:"period"`
}
