package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/utils"
	"gorm.io/gorm"
)

var ErrColorGenerationFailed = errors.New("failed to generate group color")

// GroupService provides business logic for group operations.
type GroupService struct {
	groupRepo repository.GroupRepository
	taskRepo  repository.TaskRepository
}

// NewGroupService creates a new GroupService.
func NewGroupService(groupRepo repository.GroupRepository, taskRepo repository.TaskRepository) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		taskRepo:  taskRepo,
	}
}

// CreateGroupInput represents parameters to create a new group.
type CreateGroupInput struct {
	UserID uint64
	Title  string
	Color  string
}

// UpdateGroupInput represents a partial group update.
type UpdateGroupInput struct {
	Title *string
	Color *string
}

// CreateGroup creates a new group. A random color is assigned when none is given.
func (s *GroupService) CreateGroup(ctx context.Context, input CreateGroupInput) (*models.Group, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	color := strings.TrimSpace(input.Color)
	if color == "" {
		generated, err := utils.GenerateColor()
		if err != nil {
			return nil, ErrColorGenerationFailed
		}
		color = generated
	} else if !utils.IsHexColor(color) {
		return nil, ErrInvalidColor
	}

	group := &models.Group{
		UserID: input.UserID,
		Title:  title,
		Color:  color,
	}

	if err := s.groupRepo.Create(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	return group, nil
}

// ListGroups returns one page of the user's groups and the total count.
func (s *GroupService) ListGroups(ctx context.Context, userID uint64, page utils.PaginationParams) ([]models.Group, int64, error) {
	groups, total, err := s.groupRepo.ListByUserID(ctx, userID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, total, nil
}

// GetGroup returns a group with its tasks.
func (s *GroupService) GetGroup(ctx context.Context, userID, groupID uint64) (*models.Group, error) {
	group, err := s.findOwnedGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.taskRepo.ListByGroupID(ctx, group.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group tasks: %w", err)
	}
	group.Tasks = tasks

	return group, nil
}

// UpdateGroup updates a group's title and color.
func (s *GroupService) UpdateGroup(ctx context.Context, userID, groupID uint64, input UpdateGroupInput) (*models.Group, error) {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ErrTitleRequired
	}
	if input.Color != nil && !utils.IsHexColor(strings.TrimSpace(*input.Color)) {
		return nil, ErrInvalidColor
	}

	group, err := s.findOwnedGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		group.Title = strings.TrimSpace(*input.Title)
	}
	if input.Color != nil {
		group.Color = strings.TrimSpace(*input.Color)
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return group, nil
}

// DeleteGroup removes a group with every task it holds.
func (s *GroupService) DeleteGroup(ctx context.Context, userID, groupID uint64) error {
	if _, err := s.findOwnedGroup(ctx, userID, groupID); err != nil {
		return err
	}

	if err := s.groupRepo.Delete(ctx, groupID); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	return nil
}

// findOwnedGroup hides groups of other users behind ErrGroupNotFound.
func (s *GroupService) findOwnedGroup(ctx context.Context, userID, groupID uint64) (*models.Group, error) {
	group, err := s.groupRepo.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group.UserID != userID {
		return nil, ErrGroupNotFound
	}
	return group, nil
}
