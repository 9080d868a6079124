package models

import "time"

type Task struct {
	ID               uint64     `gorm:"primarykey" json:"id"`
	GroupID          uint64     `gorm:"not null;index" json:"group_id"`
	Title            string     `gorm:"type:varchar(255);not null" json:"title"`
	IsRoutine        bool       `gorm:"not null;default:false" json:"is_routine"`
	StartAt          time.Time  `gorm:"not null" json:"start_at"`
	EndAt            *time.Time `gorm:"index" json:"end_at"`
	AchievementCount int        `gorm:"not null;default:0" json:"achievement_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Relations
	Group     Group          `gorm:"foreignKey:GroupID" json:"-"`
	Periods   []TaskPeriod   `gorm:"foreignKey:TaskID" json:"periods,omitempty"`
	Instances []TaskInstance `gorm:"foreignKey:TaskID" json:"-"`
}

// IsActiveOn reports whether day falls before the task's exclusive end date.
func (t *Task) IsActiveOn(day time.Time) bool {
	return t.EndAt == nil || t.EndAt.After(day)
}

// RecursOn reports whether the task is linked to the given weekday number.
func (t *Task) RecursOn(weekday int) bool {
	for _, p := range t.Periods {
		if p.PeriodID == uint64(weekday) {
			return true
		}
	}
	return false
}
