package dto

import (
	"time"

	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/utils"
)

// GroupDTO represents a group in API responses
type GroupDTO struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupDetailDTO represents a group together with its tasks
type GroupDetailDTO struct {
	GroupDTO
	Tasks []TaskDTO `json:"tasks"`
}

// GroupListResponse represents a paginated list of groups
type GroupListResponse struct {
	Groups     []GroupDTO               `json:"groups"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ToGroupDTO converts a Group model to GroupDTO
func ToGroupDTO(group models.Group) GroupDTO {
	return GroupDTO{
		ID:        group.ID,
		Title:     group.Title,
		Color:     group.Color,
		CreatedAt: group.CreatedAt,
	}
}

// ToGroupDetailDTO converts a group with preloaded tasks
func ToGroupDetailDTO(group models.Group, loc *time.Location) GroupDetailDTO {
	tasks := make([]TaskDTO, len(group.Tasks))
	for i, task := range group.Tasks {
		tasks[i] = ToTaskDTO(task, linkedDayLabels(task.Periods), loc)
	}

	return GroupDetailDTO{
		GroupDTO: ToGroupDTO(group),
		Tasks:    tasks,
	}
}

// ToGroupListResponse converts a page of groups
func ToGroupListResponse(groups []models.Group, page utils.PaginationParams, total int64) GroupListResponse {
	items := make([]GroupDTO, len(groups))
	for i, group := range groups {
		items[i] = ToGroupDTO(group)
	}

	return GroupListResponse{
		Groups: items,
		Pagination: utils.PaginationResponse{
			Page:  page.Page,
			Limit: page.Limit,
			Total: total,
		},
	}
}

// linkedDayLabels maps period links to labels using the fixed weekday table
func linkedDayLabels(links []models.TaskPeriod) []string {
	labels := make([]string, 0, len(links))
	for _, link := range links {
		for _, p := range models.Weekdays {
			if p.ID == link.PeriodID {
				labels = append(labels, p.Label)
			}
		}
	}
	return labels
}
