package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/microtask-api/internal/dto"
	apierrors "github.com/yukikurage/microtask-api/internal/errors"
	"github.com/yukikurage/microtask-api/internal/middleware"
	"github.com/yukikurage/microtask-api/internal/services"
	"github.com/yukikurage/microtask-api/internal/utils"
)

type GroupHandler struct {
	groupService *services.GroupService
	taskService  *services.TaskService
	loc          *time.Location
}

func NewGroupHandler(groupService *services.GroupService, taskService *services.TaskService, loc *time.Location) *GroupHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &GroupHandler{
		groupService: groupService,
		taskService:  taskService,
		loc:          loc,
	}
}

// CreateGroup creates a new group
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}

	type CreateGroupRequest struct {
		Title string `json:"title" binding:"required"`
		Color string `json:"color"`
	}

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	group, err := h.groupService.CreateGroup(requestContext(c), services.CreateGroupInput{
		UserID: userID,
		Title:  req.Title,
		Color:  req.Color,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToGroupDTO(*group))
}

// ListGroups returns a page of the user's groups
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)

	groups, total, err := h.groupService.ListGroups(requestContext(c), userID, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToGroupListResponse(groups, params, total))
}

// GetGroup returns a group with its tasks
func (h *GroupHandler) GetGroup(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	group, err := h.groupService.GetGroup(requestContext(c), userID, groupID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToGroupDetailDTO(*group, h.loc))
}

// UpdateGroup updates a group's title or color
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type UpdateGroupRequest struct {
		Title *string `json:"title"`
		Color *string `json:"color"`
	}

	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	group, err := h.groupService.UpdateGroup(requestContext(c), userID, groupID, services.UpdateGroupInput{
		Title: req.Title,
		Color: req.Color,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToGroupDTO(*group))
}

// DeleteGroup deletes a group and all of its tasks
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.groupService.DeleteGroup(requestContext(c), userID, groupID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group deleted successfully"})
}

// CreateTask adds a task to a group
func (h *GroupHandler) CreateTask(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type CreateTaskRequest struct {
		Title     string   `json:"title" binding:"required"`
		IsRoutine bool     `json:"is_routine"`
		Days      []string `json:"days"`
		EndAt     *string  `json:"end_at"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var endAt *time.Time
	if req.EndAt != nil {
		parsed, err := utils.ParseDate(*req.EndAt, h.loc)
		if err != nil {
			apierrors.BadRequest(c, err.Error())
			return
		}
		endAt = &parsed
	}

	detail, err := h.taskService.CreateTask(requestContext(c), services.CreateTaskInput{
		UserID:    userID,
		GroupID:   groupID,
		Title:     req.Title,
		IsRoutine: req.IsRoutine,
		Days:      req.Days,
		EndAt:     endAt,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDetailDTO(*detail, h.loc))
}

// SuggestTasks asks the AI service for task ideas for a group
func (h *GroupHandler) SuggestTasks(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return
	}
	groupID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	type SuggestTasksRequest struct {
		Goal string `json:"goal" binding:"required"`
	}

	var req SuggestTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	suggestions, err := h.taskService.SuggestTasks(requestContext(c), userID, groupID, req.Goal)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"suggestions": dto.ToSuggestedTaskDTOs(suggestions)})
}
