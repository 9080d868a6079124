package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yukikurage/microtask-api/internal/constants"
	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/utils"
)

// Occurrence is one task on one calendar date. Projected occurrences carry
// constants.ProjectedInstanceID because no instance has been persisted for them.
type Occurrence struct {
	InstanceID    int64
	TaskID        uint64
	GroupID       uint64
	Date          time.Time
	Title         string
	IsRoutine     bool
	IsAchievement bool
	Projected     bool
}

// RecurrenceResolver blends persisted instances with occurrences projected from weekly recurrence.
type RecurrenceResolver struct {
	tasks     repository.TaskRepository
	instances repository.InstanceRepository
	clock     utils.Clock
}

// NewRecurrenceResolver creates a new RecurrenceResolver.
func NewRecurrenceResolver(tasks repository.TaskRepository, instances repository.InstanceRepository, clock utils.Clock) *RecurrenceResolver {
	return &RecurrenceResolver{
		tasks:     tasks,
		instances: instances,
		clock:     clock,
	}
}

// ResolveRange returns the user's occurrences for dates in [start, end).
//
// Dates up to and including today come from persisted instances. Later dates are
// projected from the user's routine tasks and never persisted. Materialized records
// come first in query order, followed by projected ones in ascending date order.
func (r *RecurrenceResolver) ResolveRange(ctx context.Context, userID uint64, start, end time.Time) ([]Occurrence, error) {
	start = utils.StartOfDay(start)
	end = utils.StartOfDay(end)
	occurrences := []Occurrence{}

	if !start.Before(end) {
		return occurrences, nil
	}
	if end.After(start.AddDate(0, 0, constants.MaxResolveDays)) {
		return nil, ErrInvalidDateRange
	}

	tomorrow := utils.Today(r.clock).AddDate(0, 0, 1)

	if start.Before(tomorrow) {
		materialized, err := r.materialized(ctx, userID, start, earlier(end, tomorrow))
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, materialized...)
	}

	if projectedStart := later(start, tomorrow); projectedStart.Before(end) {
		projected, err := r.projected(ctx, userID, projectedStart, end)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, projected...)
	}

	return occurrences, nil
}

// ResolveDay returns the occurrences of a single date.
func (r *RecurrenceResolver) ResolveDay(ctx context.Context, userID uint64, day time.Time) ([]Occurrence, error) {
	day = utils.StartOfDay(day)
	return r.ResolveRange(ctx, userID, day, day.AddDate(0, 0, 1))
}

func (r *RecurrenceResolver) materialized(ctx context.Context, userID uint64, start, end time.Time) ([]Occurrence, error) {
	instances, err := r.instances.ListByUserBetween(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	loc := r.clock.Now().Location()
	occurrences := make([]Occurrence, 0, len(instances))
	for i := range instances {
		occurrences = append(occurrences, occurrenceFromInstance(&instances[i], loc))
	}
	return occurrences, nil
}

func (r *RecurrenceResolver) projected(ctx context.Context, userID uint64, start, end time.Time) ([]Occurrence, error) {
	tasks, err := r.tasks.ListRoutineByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routine tasks: %w", err)
	}

	byWeekday := tasksByWeekday(tasks)

	var occurrences []Occurrence
	for _, date := range utils.DatesBetween(start, end) {
		for _, task := range byWeekday[utils.WeekdayNumber(date)] {
			// end_at is exclusive
			if !task.IsActiveOn(date) {
				continue
			}
			occurrences = append(occurrences, Occurrence{
				InstanceID: constants.ProjectedInstanceID,
				TaskID:     task.ID,
				GroupID:    task.GroupID,
				Date:       date,
				Title:      task.Title,
				IsRoutine:  true,
				Projected:  true,
			})
		}
	}
	return occurrences, nil
}

// tasksByWeekday indexes routine tasks by weekday number 1..7, keeping input order.
func tasksByWeekday(tasks []models.Task) map[int][]*models.Task {
	index := make(map[int][]*models.Task, 7)
	for i := range tasks {
		task := &tasks[i]
		if !task.IsRoutine {
			continue
		}
		for weekday := 1; weekday <= 7; weekday++ {
			if task.RecursOn(weekday) {
				index[weekday] = append(index[weekday], task)
			}
		}
	}
	return index
}

func occurrenceFromInstance(instance *models.TaskInstance, loc *time.Location) Occurrence {
	return Occurrence{
		InstanceID:    int64(instance.ID),
		TaskID:        instance.TaskID,
		GroupID:       instance.GroupID,
		Date:          utils.DateIn(instance.OccurredOn, loc),
		Title:         instance.Title,
		IsRoutine:     instance.IsRoutine,
		IsAchievement: instance.IsAchievement,
	}
}

func earlier(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
