package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yukikurage/microtask-api/internal/constants"
	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/utils"
	"gorm.io/gorm"
)

// TaskService owns the task and instance lifecycle. It is the only writer of
// achievement state and counters.
type TaskService struct {
	repos     repository.Repositories
	uow       repository.UnitOfWork
	clock     utils.Clock
	resolver  *RecurrenceResolver
	aiService *AIService
}

// NewTaskService creates a new TaskService. aiService may be nil.
func NewTaskService(repos repository.Repositories, uow repository.UnitOfWork, clock utils.Clock, aiService *AIService) *TaskService {
	return &TaskService{
		repos:     repos,
		uow:       uow,
		clock:     clock,
		resolver:  NewRecurrenceResolver(repos.Tasks, repos.Instances, clock),
		aiService: aiService,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	UserID    uint64
	GroupID   uint64
	Title     string
	IsRoutine bool
	Days      []string
	EndAt     *time.Time
}

// UpdateTaskInput represents input for updating a task. Nil fields are left unchanged.
type UpdateTaskInput struct {
	Title      *string
	IsRoutine  *bool
	EndAt      *time.Time
	ClearEndAt bool
	Days       *[]string
}

// TaskDetail is a task with the labels of the weekdays it recurs on.
type TaskDetail struct {
	Task  *models.Task
	Group *models.Group
	Days  []string
}

// InstanceResult pairs an instance with its task after a state change.
type InstanceResult struct {
	Task     *models.Task
	Instance *models.TaskInstance
}

// OneTimeTask is a non-routine task and its instance on the requested date, if started.
type OneTimeTask struct {
	Task     models.Task
	Instance *models.TaskInstance
}

// CreateTask validates the request, then persists the task, its period links and,
// when the task recurs today, today's pending instance in one transaction.
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*TaskDetail, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	days := input.Days
	if err := validateRecurrence(input.IsRoutine, days != nil, days); err != nil {
		return nil, err
	}

	periods, err := resolvePeriods(ctx, s.repos.Periods, days)
	if err != nil {
		return nil, err
	}

	today := utils.Today(s.clock)
	task := &models.Task{
		GroupID:   input.GroupID,
		Title:     title,
		IsRoutine: input.IsRoutine,
		StartAt:   today,
		EndAt:     normalizeEndAt(input.EndAt),
	}

	var group *models.Group
	err = s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		group, err = repos.Groups.FindByIDForUpdate(ctx, input.GroupID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return fmt.Errorf("failed to find group: %w", err)
		}
		if group.UserID != input.UserID {
			return ErrGroupNotFound
		}

		// An already-expired task never counts against the cap.
		if task.IsActiveOn(today) {
			if err := ensureCapacity(ctx, repos, group.ID, today); err != nil {
				return err
			}
		}

		if err := repos.Tasks.Create(ctx, task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}

		if err := repos.Tasks.AddPeriods(ctx, task.ID, periodIDs(periods)); err != nil {
			return fmt.Errorf("failed to link periods: %w", err)
		}

		if task.IsRoutine && task.IsActiveOn(today) && containsWeekday(periods, utils.WeekdayNumber(today)) {
			if err := repos.Instances.Create(ctx, models.NewPendingInstance(task, today)); err != nil {
				return fmt.Errorf("failed to create today's instance: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &TaskDetail{Task: task, Group: group, Days: periodLabels(periods)}, nil
}

// UpdateTask applies a partial update. When days are supplied, links are diffed as sets
// keyed by weekday; a newly added weekday equal to today materializes today's instance.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID uint64, input UpdateTaskInput) (*TaskDetail, error) {
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, ErrTitleRequired
	}

	today := utils.Today(s.clock)

	var task *models.Task
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		var err error
		task, err = findOwnedTaskForUpdate(ctx, repos, userID, taskID)
		if err != nil {
			return err
		}

		links, err := repos.Tasks.ListPeriodLinks(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("failed to list period links: %w", err)
		}

		isRoutine := task.IsRoutine
		if input.IsRoutine != nil {
			isRoutine = *input.IsRoutine
		}

		var target []models.Period
		if input.Days != nil {
			if err := validateRecurrence(isRoutine, true, *input.Days); err != nil {
				return err
			}
			target, err = resolvePeriods(ctx, repos.Periods, *input.Days)
			if err != nil {
				return err
			}
		} else if isRoutine && len(links) == 0 {
			return ErrInvalidPeriod
		}

		if input.Title != nil {
			task.Title = strings.TrimSpace(*input.Title)
		}
		task.IsRoutine = isRoutine
		wasActive := task.IsActiveOn(today)
		if input.ClearEndAt {
			task.EndAt = nil
		} else if input.EndAt != nil {
			task.EndAt = normalizeEndAt(input.EndAt)
		}

		// Reviving an expired task takes a slot like creating one does.
		if !wasActive && task.IsActiveOn(today) {
			if _, err := repos.Groups.FindByIDForUpdate(ctx, task.GroupID); err != nil {
				return fmt.Errorf("failed to lock group: %w", err)
			}
			if err := ensureCapacity(ctx, repos, task.GroupID, today); err != nil {
				return err
			}
		}

		if err := repos.Tasks.Update(ctx, task); err != nil {
			return fmt.Errorf("failed to update task: %w", err)
		}

		if err := repos.Instances.RelinkTask(ctx, task); err != nil {
			return fmt.Errorf("failed to relink instances: %w", err)
		}

		if !task.IsRoutine {
			if err := repos.Tasks.DeleteAllPeriods(ctx, task.ID); err != nil {
				return fmt.Errorf("failed to delete period links: %w", err)
			}
			return nil
		}

		if input.Days == nil {
			return nil
		}

		added, removed := diffPeriods(links, target)
		if err := repos.Tasks.RemovePeriods(ctx, task.ID, removed); err != nil {
			return fmt.Errorf("failed to unlink periods: %w", err)
		}
		if err := repos.Tasks.AddPeriods(ctx, task.ID, added); err != nil {
			return fmt.Errorf("failed to link periods: %w", err)
		}

		if task.IsActiveOn(today) && containsID(added, uint64(utils.WeekdayNumber(today))) {
			if _, err := repos.Instances.CreateIfAbsent(ctx, models.NewPendingInstance(task, today)); err != nil {
				return fmt.Errorf("failed to create today's instance: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.detail(ctx, task)
}

// GetTaskDetail returns a task and, for routine tasks, its weekday labels
func (s *TaskService) GetTaskDetail(ctx context.Context, userID, taskID uint64) (*TaskDetail, error) {
	task, err := s.findOwnedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, task)
}

// DeleteTask removes a task with its period links and instances
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID uint64) error {
	return s.uow.Do(ctx, func(repos repository.Repositories) error {
		task, err := findOwnedTaskForUpdate(ctx, repos, userID, taskID)
		if err != nil {
			return err
		}

		if err := repos.Tasks.DeleteAllPeriods(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to delete period links: %w", err)
		}
		if err := repos.Instances.DeleteByTaskID(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to delete instances: %w", err)
		}
		if err := repos.Tasks.Delete(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
}

// StartTask materializes today's instance of a non-routine task
func (s *TaskService) StartTask(ctx context.Context, userID, taskID uint64) (*InstanceResult, error) {
	today := utils.Today(s.clock)

	var result InstanceResult
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		task, err := findOwnedTaskForUpdate(ctx, repos, userID, taskID)
		if err != nil {
			return err
		}
		if task.IsRoutine {
			return ErrRoutineNotStartable
		}

		instance := models.NewPendingInstance(task, today)
		created, err := repos.Instances.CreateIfAbsent(ctx, instance)
		if err != nil {
			return fmt.Errorf("failed to start task: %w", err)
		}
		if !created {
			return ErrAlreadyStarted
		}

		result = InstanceResult{Task: task, Instance: instance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// SucceedInstance marks a pending instance achieved and increments its task's counter
func (s *TaskService) SucceedInstance(ctx context.Context, userID, instanceID uint64) (*InstanceResult, error) {
	return s.toggleAchievement(ctx, userID, instanceID, true)
}

// FailInstance reverts an achieved instance to pending and decrements its task's counter
func (s *TaskService) FailInstance(ctx context.Context, userID, instanceID uint64) (*InstanceResult, error) {
	return s.toggleAchievement(ctx, userID, instanceID, false)
}

func (s *TaskService) toggleAchievement(ctx context.Context, userID, instanceID uint64, achieved bool) (*InstanceResult, error) {
	var result InstanceResult
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		instance, err := repos.Instances.FindByIDForUpdate(ctx, instanceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInstanceNotFound
			}
			return fmt.Errorf("failed to find instance: %w", err)
		}
		if instance.Task.Group.UserID != userID {
			return ErrInstanceNotFound
		}

		// The guarded update also covers stores that ignore row locks.
		changed, err := repos.Instances.SetAchievement(ctx, instance.ID, !achieved, achieved)
		if err != nil {
			return fmt.Errorf("failed to update instance: %w", err)
		}
		if !changed {
			if achieved {
				return ErrAlreadyAchieved
			}
			return ErrNotAchieved
		}

		if achieved {
			err = repos.Tasks.IncrementAchievement(ctx, instance.TaskID)
		} else {
			err = repos.Tasks.DecrementAchievement(ctx, instance.TaskID)
		}
		if err != nil {
			return fmt.Errorf("failed to update achievement count: %w", err)
		}

		if instance, err = repos.Instances.FindByID(ctx, instance.ID); err != nil {
			return fmt.Errorf("failed to reload instance: %w", err)
		}
		task, err := repos.Tasks.FindByID(ctx, instance.TaskID)
		if err != nil {
			return fmt.Errorf("failed to reload task: %w", err)
		}

		result = InstanceResult{Task: task, Instance: instance}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// GetRoutineInstances resolves the user's occurrences for [start, end)
func (s *TaskService) GetRoutineInstances(ctx context.Context, userID uint64, start, end time.Time) ([]Occurrence, error) {
	return s.resolver.ResolveRange(ctx, userID, start, end)
}

// GetDayInstances resolves the user's occurrences on a single date
func (s *TaskService) GetDayInstances(ctx context.Context, userID uint64, day time.Time) ([]Occurrence, error) {
	return s.resolver.ResolveDay(ctx, userID, day)
}

// GetOneTimeInstances lists the user's non-routine tasks with their instance on day
func (s *TaskService) GetOneTimeInstances(ctx context.Context, userID uint64, day time.Time) ([]OneTimeTask, error) {
	day = utils.StartOfDay(day)

	tasks, err := s.repos.Tasks.ListOneTimeByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list one-time tasks: %w", err)
	}

	instances, err := s.repos.Instances.ListByUserBetween(ctx, userID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	byTask := make(map[uint64]*models.TaskInstance, len(instances))
	for i := range instances {
		byTask[instances[i].TaskID] = &instances[i]
	}

	result := make([]OneTimeTask, 0, len(tasks))
	for _, task := range tasks {
		result = append(result, OneTimeTask{Task: task, Instance: byTask[task.ID]})
	}
	return result, nil
}

// CreateRoutineInstancesForToday materializes today's pending instance for every
// active routine task recurring on today's weekday. Running it twice creates nothing new.
func (s *TaskService) CreateRoutineInstancesForToday(ctx context.Context) (int, error) {
	today := utils.Today(s.clock)
	weekday := utils.WeekdayNumber(today)

	userIDs, err := s.repos.Users.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	total := 0
	var errs []error
	for _, userID := range userIDs {
		created, err := s.materializeForUser(ctx, userID, weekday, today)
		if err != nil {
			slog.Error("daily materialization failed", "user_id", userID, "error", err)
			errs = append(errs, err)
			continue
		}
		total += created
	}

	slog.Info("daily materialization completed",
		"date", utils.FormatDate(today),
		"users", len(userIDs),
		"created", total,
		"failed_users", len(errs))

	return total, errors.Join(errs...)
}

func (s *TaskService) materializeForUser(ctx context.Context, userID uint64, weekday int, today time.Time) (int, error) {
	created := 0
	err := s.uow.Do(ctx, func(repos repository.Repositories) error {
		tasks, err := repos.Tasks.ListRoutineForWeekday(ctx, userID, weekday, today)
		if err != nil {
			return fmt.Errorf("failed to list routine tasks: %w", err)
		}

		for i := range tasks {
			exists, err := repos.Instances.ExistsForTaskOn(ctx, tasks[i].ID, today)
			if err != nil {
				return fmt.Errorf("failed to check today's instance: %w", err)
			}
			if exists {
				continue
			}

			ok, err := repos.Instances.CreateIfAbsent(ctx, models.NewPendingInstance(&tasks[i], today))
			if err != nil {
				return fmt.Errorf("failed to create instance: %w", err)
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// SuggestTasks asks the AI service for task ideas for one of the user's groups
func (s *TaskService) SuggestTasks(ctx context.Context, userID, groupID uint64, goal string) ([]SuggestedTask, error) {
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}

	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, ErrGoalRequired
	}

	group, err := s.repos.Groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("failed to find group: %w", err)
	}
	if group.UserID != userID {
		return nil, ErrGroupNotFound
	}

	return s.aiService.SuggestTasks(ctx, goal)
}

func (s *TaskService) findOwnedTask(ctx context.Context, userID, taskID uint64) (*models.Task, error) {
	task, err := s.repos.Tasks.FindByID(ctx, taskID, "Group")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task.Group.ID == 0 {
		return nil, ErrGroupNotFound
	}
	if task.Group.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// ensureCapacity fails when the group already holds the maximum number of active tasks.
func ensureCapacity(ctx context.Context, repos repository.Repositories, groupID uint64, today time.Time) error {
	active, err := repos.Groups.CountActiveTasks(ctx, groupID, today)
	if err != nil {
		return fmt.Errorf("failed to count active tasks: %w", err)
	}
	if active >= constants.MaxActiveTasksPerGroup {
		return ErrTooManyTasks
	}
	return nil
}

func findOwnedTaskForUpdate(ctx context.Context, repos repository.Repositories, userID, taskID uint64) (*models.Task, error) {
	task, err := repos.Tasks.FindByIDForUpdate(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	if task.Group.UserID != userID {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

func (s *TaskService) detail(ctx context.Context, task *models.Task) (*TaskDetail, error) {
	fresh, err := s.repos.Tasks.FindByID(ctx, task.ID, "Group")
	if err != nil {
		return nil, fmt.Errorf("failed to reload task: %w", err)
	}

	detail := &TaskDetail{Task: fresh, Group: &fresh.Group, Days: []string{}}
	if !fresh.IsRoutine {
		return detail, nil
	}

	periods, err := s.repos.Periods.FindByTaskID(ctx, fresh.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}
	detail.Days = periodLabels(periods)
	return detail, nil
}

// resolvePeriods maps day names onto periods, dropping duplicates and ordering by weekday.
func resolvePeriods(ctx context.Context, periods repository.PeriodRepository, days []string) ([]models.Period, error) {
	if len(days) == 0 {
		return nil, nil
	}

	all, err := periods.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list periods: %w", err)
	}

	byLabel := make(map[string]models.Period, len(all))
	for _, p := range all {
		byLabel[p.Label] = p
	}

	seen := make(map[uint64]bool, len(days))
	for _, day := range days {
		period, ok := byLabel[utils.CanonicalDayLabel(day)]
		if !ok {
			return nil, ErrUnknownDay
		}
		seen[period.ID] = true
	}

	resolved := make([]models.Period, 0, len(seen))
	for _, p := range all {
		if seen[p.ID] {
			resolved = append(resolved, p)
		}
	}
	return resolved, nil
}

// validateRecurrence enforces that routine tasks have days and only routine tasks do.
func validateRecurrence(isRoutine, daysSupplied bool, days []string) error {
	if isRoutine && len(days) == 0 {
		return ErrInvalidPeriod
	}
	if !isRoutine && daysSupplied && len(days) > 0 {
		return ErrInvalidPeriod
	}
	return nil
}

// diffPeriods compares current links with the target set by period ID.
func diffPeriods(current []models.TaskPeriod, target []models.Period) (added, removed []uint64) {
	currentIDs := make(map[uint64]bool, len(current))
	for _, link := range current {
		currentIDs[link.PeriodID] = true
	}

	targetIDs := make(map[uint64]bool, len(target))
	for _, p := range target {
		targetIDs[p.ID] = true
		if !currentIDs[p.ID] {
			added = append(added, p.ID)
		}
	}

	for _, link := range current {
		if !targetIDs[link.PeriodID] {
			removed = append(removed, link.PeriodID)
		}
	}
	return added, removed
}

func normalizeEndAt(endAt *time.Time) *time.Time {
	if endAt == nil {
		return nil
	}
	day := utils.StartOfDay(*endAt)
	return &day
}

func periodIDs(periods []models.Period) []uint64 {
	ids := make([]uint64, len(periods))
	for i, p := range periods {
		ids[i] = p.ID
	}
	return ids
}

func periodLabels(periods []models.Period) []string {
	labels := make([]string, len(periods))
	for i, p := range periods {
		labels[i] = p.Label
	}
	return labels
}

func containsWeekday(periods []models.Period, weekday int) bool {
	return containsID(periodIDs(periods), uint64(weekday))
}

func containsID(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
