package models

import "time"

// Group owns a set of tasks for a single user.
type Group struct {
	ID        uint64    `gorm:"primarykey" json:"id"`
	UserID    uint64    `gorm:"not null;index" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Color     string    `gorm:"type:varchar(20)" json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	User  User   `gorm:"foreignKey:UserID" json:"-"`
	Tasks []Task `gorm:"foreignKey:GroupID" json:"tasks,omitempty"`
}

// TableName avoids the reserved word GROUPS on MySQL 8.
func (Group) TableName() string {
	return "task_groups"
}
