package repository

import (
	"context"
	"time"

	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/utils"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// CreateWithDefaultGroup creates a user and their first group within a single transaction.
	CreateWithDefaultGroup(ctx context.Context, user *models.User, group *models.Group) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// ListIDs returns the IDs of every user
	ListIDs(ctx context.Context) ([]uint64, error)
}

// GroupRepository defines the interface for group data access
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group) error

	// FindByID finds a group by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Group, error)

	// FindByIDForUpdate finds a group and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uint64) (*models.Group, error)

	// ListByUserID lists one page of the user's groups and the total count
	ListByUserID(ctx context.Context, userID uint64, page utils.PaginationParams) ([]models.Group, int64, error)

	Update(ctx context.Context, group *models.Group) error

	// Delete removes a group together with its tasks, their links and instances
	Delete(ctx context.Context, id uint64) error

	// CountActiveTasks counts tasks in the group whose end date is unset or after day
	CountActiveTasks(ctx context.Context, groupID uint64, day time.Time) (int64, error)
}

// PeriodRepository defines the interface for weekday reference data
type PeriodRepository interface {
	FindAll(ctx context.Context) ([]models.Period, error)

	// FindByTaskID returns the periods linked to a task ordered by weekday number
	FindByTaskID(ctx context.Context, taskID uint64) ([]models.Period, error)
}

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(ctx context.Context, id uint64, preload ...string) (*models.Task, error)

	// FindByIDForUpdate finds a task with its group and locks the task row
	FindByIDForUpdate(ctx context.Context, id uint64) (*models.Task, error)

	// Update saves scalar task fields without touching associations
	Update(ctx context.Context, task *models.Task) error

	// Delete removes the task row only; callers delete links and instances first
	Delete(ctx context.Context, id uint64) error

	ListByGroupID(ctx context.Context, groupID uint64) ([]models.Task, error)

	// ListRoutineByUser returns every routine task owned by the user with period links loaded
	ListRoutineByUser(ctx context.Context, userID uint64) ([]models.Task, error)

	// ListOneTimeByUser returns every non-routine task owned by the user
	ListOneTimeByUser(ctx context.Context, userID uint64) ([]models.Task, error)

	// ListRoutineForWeekday returns the user's routine tasks linked to weekday and active on day
	ListRoutineForWeekday(ctx context.Context, userID uint64, weekday int, day time.Time) ([]models.Task, error)

	ListPeriodLinks(ctx context.Context, taskID uint64) ([]models.TaskPeriod, error)

	// AddPeriods links the task to each period, ignoring links that already exist
	AddPeriods(ctx context.Context, taskID uint64, periodIDs []uint64) error

	RemovePeriods(ctx context.Context, taskID uint64, periodIDs []uint64) error
	DeleteAllPeriods(ctx context.Context, taskID uint64) error

	// IncrementAchievement adds one to the task's achievement counter in a single statement
	IncrementAchievement(ctx context.Context, taskID uint64) error

	// DecrementAchievement subtracts one from the counter, never going below zero
	DecrementAchievement(ctx context.Context, taskID uint64) error
}

// InstanceRepository defines the interface for task instance data access
type InstanceRepository interface {
	Create(ctx context.Context, instance *models.TaskInstance) error

	// CreateIfAbsent inserts the instance unless one already exists for the same task and day.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, instance *models.TaskInstance) (bool, error)

	FindByID(ctx context.Context, id uint64) (*models.TaskInstance, error)

	// FindByIDForUpdate finds an instance with its task and group and locks the instance row
	FindByIDForUpdate(ctx context.Context, id uint64) (*models.TaskInstance, error)

	ExistsForTaskOn(ctx context.Context, taskID uint64, day time.Time) (bool, error)

	// ListByUserBetween returns the user's instances in [start, end) ordered by day then ID
	ListByUserBetween(ctx context.Context, userID uint64, start, end time.Time) ([]models.TaskInstance, error)

	// RelinkTask refreshes the task snapshot held by every instance of the task
	RelinkTask(ctx context.Context, task *models.Task) error

	// SetAchievement flips the flag only if it currently equals from. It reports whether the row changed.
	SetAchievement(ctx context.Context, id uint64, from, to bool) (bool, error)

	// DeleteByTaskID removes every instance of the task
	DeleteByTaskID(ctx context.Context, taskID uint64) error
}

// Repositories bundles every repository bound to the same connection or transaction
type Repositories struct {
	Users     UserRepository
	Groups    GroupRepository
	Periods   PeriodRepository
	Tasks     TaskRepository
	Instances InstanceRepository
}

// NewRepositories creates GORM repositories sharing db
func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Users:     NewUserRepository(db),
		Groups:    NewGroupRepository(db),
		Periods:   NewPeriodRepository(db),
		Tasks:     NewTaskRepository(db),
		Instances: NewInstanceRepository(db),
	}
}

// UnitOfWork runs a function against repositories that share one transaction
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

// GormUnitOfWork is a GORM implementation of UnitOfWork
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a new UnitOfWork
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Do commits when fn returns nil and rolls back otherwise
func (u *GormUnitOfWork) Do(ctx context.Context, fn func(repos Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
