package dto

import (
	"time"

	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/services"
	"github.com/yukikurage/microtask-api/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// TaskDTO represents a task in API responses. Dates are YYYY-MM-DD.
type TaskDTO struct {
	ID               uint64    `json:"id"`
	GroupID          uint64    `json:"group_id"`
	Title            string    `json:"title"`
	IsRoutine        bool      `json:"is_routine"`
	StartAt          string    `json:"start_at"`
	EndAt            *string   `json:"end_at"`
	AchievementCount int       `json:"achievement_count"`
	Days             []string  `json:"days"`
	CreatedAt        time.Time `json:"created_at"`
}

// TaskDetailDTO adds the owning group's display fields
type TaskDetailDTO struct {
	TaskDTO
	GroupTitle string `json:"group_title"`
	Color      string `json:"color"`
}

// InstanceDTO represents a materialized task instance
type InstanceDTO struct {
	ID            uint64 `json:"id"`
	TaskID        uint64 `json:"task_id"`
	GroupID       uint64 `json:"group_id"`
	Title         string `json:"title"`
	IsRoutine     bool   `json:"is_routine"`
	IsAchievement bool   `json:"is_achievement"`
	Date          string `json:"date"`
}

// InstanceResultDTO is returned after starting a task or toggling an instance
type InstanceResultDTO struct {
	Task     TaskDTO     `json:"task"`
	Instance InstanceDTO `json:"instance"`
}

// OccurrenceDTO is one resolved occurrence. Projected occurrences have id -1.
type OccurrenceDTO struct {
	ID            int64  `json:"id"`
	TaskID        uint64 `json:"task_id"`
	GroupID       uint64 `json:"group_id"`
	Title         string `json:"title"`
	IsRoutine     bool   `json:"is_routine"`
	IsAchievement bool   `json:"is_achievement"`
	Projected     bool   `json:"projected"`
	Date          string `json:"date"`
}

// OneTimeTaskDTO pairs a non-routine task with its instance for the requested day
type OneTimeTaskDTO struct {
	Task     TaskDTO      `json:"task"`
	Instance *InstanceDTO `json:"instance"`
}

// SuggestedTaskDTO represents an AI task suggestion
type SuggestedTaskDTO struct {
	Title     string   `json:"title"`
	IsRoutine bool     `json:"is_routine"`
	Days      []string `json:"days"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToTaskDTO converts a Task model to TaskDTO. Dates are rendered as calendar days in loc.
func ToTaskDTO(task models.Task, days []string, loc *time.Location) TaskDTO {
	if days == nil {
		days = []string{}
	}

	dto := TaskDTO{
		ID:               task.ID,
		GroupID:          task.GroupID,
		Title:            task.Title,
		IsRoutine:        task.IsRoutine,
		StartAt:          formatDay(task.StartAt, loc),
		AchievementCount: task.AchievementCount,
		Days:             days,
		CreatedAt:        task.CreatedAt,
	}

	if task.EndAt != nil {
		endAt := formatDay(*task.EndAt, loc)
		dto.EndAt = &endAt
	}

	return dto
}

// ToTaskDetailDTO converts a service TaskDetail
func ToTaskDetailDTO(detail services.TaskDetail, loc *time.Location) TaskDetailDTO {
	dto := TaskDetailDTO{
		TaskDTO: ToTaskDTO(*detail.Task, detail.Days, loc),
	}

	// Include group if loaded
	if detail.Group != nil {
		dto.GroupTitle = detail.Group.Title
		dto.Color = detail.Group.Color
	}

	return dto
}

// ToInstanceDTO converts a TaskInstance model to InstanceDTO
func ToInstanceDTO(instance models.TaskInstance, loc *time.Location) InstanceDTO {
	return InstanceDTO{
		ID:            instance.ID,
		TaskID:        instance.TaskID,
		GroupID:       instance.GroupID,
		Title:         instance.Title,
		IsRoutine:     instance.IsRoutine,
		IsAchievement: instance.IsAchievement,
		Date:          formatDay(instance.OccurredOn, loc),
	}
}

// ToInstanceResultDTO converts a service InstanceResult
func ToInstanceResultDTO(result services.InstanceResult, loc *time.Location) InstanceResultDTO {
	return InstanceResultDTO{
		Task:     ToTaskDTO(*result.Task, nil, loc),
		Instance: ToInstanceDTO(*result.Instance, loc),
	}
}

// ToOccurrenceDTOs converts resolved occurrences
func ToOccurrenceDTOs(occurrences []services.Occurrence, loc *time.Location) []OccurrenceDTO {
	items := make([]OccurrenceDTO, len(occurrences))
	for i, o := range occurrences {
		items[i] = OccurrenceDTO{
			ID:            o.InstanceID,
			TaskID:        o.TaskID,
			GroupID:       o.GroupID,
			Title:         o.Title,
			IsRoutine:     o.IsRoutine,
			IsAchievement: o.IsAchievement,
			Projected:     o.Projected,
			Date:          formatDay(o.Date, loc),
		}
	}
	return items
}

// ToOneTimeTaskDTOs converts one-time tasks with their optional instance
func ToOneTimeTaskDTOs(tasks []services.OneTimeTask, loc *time.Location) []OneTimeTaskDTO {
	items := make([]OneTimeTaskDTO, len(tasks))
	for i, t := range tasks {
		items[i] = OneTimeTaskDTO{Task: ToTaskDTO(t.Task, nil, loc)}
		if t.Instance != nil {
			instance := ToInstanceDTO(*t.Instance, loc)
			items[i].Instance = &instance
		}
	}
	return items
}

// ToSuggestedTaskDTOs converts AI suggestions
func ToSuggestedTaskDTOs(suggestions []services.SuggestedTask) []SuggestedTaskDTO {
	items := make([]SuggestedTaskDTO, len(suggestions))
	for i, s := range suggestions {
		items[i] = SuggestedTaskDTO{
			Title:     s.Title,
			IsRoutine: s.IsRoutine,
			Days:      s.Days,
		}
	}
	return items
}

func formatDay(t time.Time, loc *time.Location) string {
	return utils.FormatDate(utils.DateIn(t, loc))
}
