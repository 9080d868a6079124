package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/microtask-api/internal/dto"
	apierrors "github.com/yukikurage/microtask-api/internal/errors"
	"github.com/yukikurage/microtask-api/internal/middleware"
	"github.com/yukikurage/microtask-api/internal/services"
	"github.com/yukikurage/microtask-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
	loc         *time.Location
}

func NewTaskHandler(taskService *services.TaskService, loc *time.Location) *TaskHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TaskHandler{
		taskService: taskService,
		loc:         loc,
	}
}

// GetTask returns a task with its group color and recurrence days
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.taskService.GetTaskDetail(requestContext(c), userID, taskID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDetailDTO(*detail, h.loc))
}

// UpdateTask applies a partial update. Absent fields stay unchanged and
// "end_at": null clears the end date.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Parse raw JSON to detect which fields were sent
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateTaskInput

	if title, ok := rawReq["title"]; ok {
		titleStr, ok := title.(string)
		if !ok {
			apierrors.BadRequest(c, "title must be a string")
			return
		}
		input.Title = &titleStr
	}
	if isRoutine, ok := rawReq["is_routine"]; ok {
		routine, ok := isRoutine.(bool)
		if !ok {
			apierrors.BadRequest(c, "is_routine must be a boolean")
			return
		}
		input.IsRoutine = &routine
	}
	if endAt, ok := rawReq["end_at"]; ok {
		// end_at was provided (might be null)
		if endAt == nil {
			input.ClearEndAt = true
		} else {
			endAtStr, ok := endAt.(string)
			if !ok {
				apierrors.BadRequest(c, "end_at must be a date string or null")
				return
			}
			parsed, err := utils.ParseDate(endAtStr, h.loc)
			if err != nil {
				apierrors.BadRequest(c, err.Error())
				return
			}
			input.EndAt = &parsed
		}
	}
	if rawDays, ok := rawReq["days"]; ok && rawDays != nil {
		items, ok := rawDays.([]any)
		if !ok {
			apierrors.BadRequest(c, "days must be an array of day names")
			return
		}
		days := make([]string, 0, len(items))
		for _, item := range items {
			day, ok := item.(string)
			if !ok {
				apierrors.BadRequest(c, "days must be an array of day names")
				return
			}
			days = append(days, day)
		}
		input.Days = &days
	}

	detail, err := h.taskService.UpdateTask(requestContext(c), userID, taskID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDetailDTO(*detail, h.loc))
}

// DeleteTask deletes a task with its recurrence links and instances
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(requestContext(c), userID, taskID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// StartTask creates today's instance of a one-time task
func (h *TaskHandler) StartTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	taskID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.taskService.StartTask(requestContext(c), userID, taskID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToInstanceResultDTO(*result, h.loc))
}

// SucceedInstance marks an instance achieved
func (h *TaskHandler) SucceedInstance(c *gin.Context) {
	h.toggleInstance(c, h.taskService.SucceedInstance)
}

// FailInstance reverts an achieved instance
func (h *TaskHandler) FailInstance(c *gin.Context) {
	h.toggleInstance(c, h.taskService.FailInstance)
}

func (h *TaskHandler) toggleInstance(c *gin.Context, toggle func(ctx context.Context, userID, instanceID uint64) (*services.InstanceResult, error)) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	instanceID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := toggle(requestContext(c), userID, instanceID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToInstanceResultDTO(*result, h.loc))
}

// GetDayInstances returns the occurrences of one date
func (h *TaskHandler) GetDayInstances(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	day, ok := parseDateQuery(c, "date", h.loc)
	if !ok {
		return
	}

	occurrences, err := h.taskService.GetDayInstances(requestContext(c), userID, day)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":      utils.FormatDate(day),
		"instances": dto.ToOccurrenceDTOs(occurrences, h.loc),
	})
}

// GetOneTimeInstances returns the user's one-time tasks with their instance on a date
func (h *TaskHandler) GetOneTimeInstances(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	day, ok := parseDateQuery(c, "date", h.loc)
	if !ok {
		return
	}

	tasks, err := h.taskService.GetOneTimeInstances(requestContext(c), userID, day)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"date":  utils.FormatDate(day),
		"tasks": dto.ToOneTimeTaskDTOs(tasks, h.loc),
	})
}

// GetRoutineInstances returns materialized and projected occurrences for [start, end)
func (h *TaskHandler) GetRoutineInstances(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	start, ok := parseDateQuery(c, "start", h.loc)
	if !ok {
		return
	}
	end, ok := parseDateQuery(c, "end", h.loc)
	if !ok {
		return
	}

	occurrences, err := h.taskService.GetRoutineInstances(requestContext(c), userID, start, end)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"start":     utils.FormatDate(start),
		"end":       utils.FormatDate(end),
		"instances": dto.ToOccurrenceDTOs(occurrences, h.loc),
	})
}
