package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/microtask-api/internal/constants"
	"github.com/yukikurage/microtask-api/internal/models"
	"github.com/yukikurage/microtask-api/internal/repository"
	"github.com/yukikurage/microtask-api/internal/testutils"
	"github.com/yukikurage/microtask-api/internal/utils"
	"gorm.io/gorm"
)

// Wednesday, 2024-05-15
var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TaskServiceTestSuite defines the test suite for TaskService
type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	ctx     context.Context
	service *TaskService
	user    *models.User
	group   *models.Group
}

// SetupTest runs before each test
func (suite *TaskServiceTestSuite) SetupTest() {
	suite.db = testutils.NewTestDB(suite.T())
	suite.ctx = context.Background()
	suite.service = suite.serviceAt(testNow)

	suite.user = testutils.CreateUser(suite.T(), suite.db, "owner")
	suite.group = testutils.CreateGroup(suite.T(), suite.db, suite.user.ID, "Health")
}

func (suite *TaskServiceTestSuite) serviceAt(now time.Time) *TaskService {
	return NewTaskService(
		repository.NewRepositories(suite.db),
		repository.NewUnitOfWork(suite.db),
		utils.FixedClock{Time: now},
		nil,
	)
}

func (suite *TaskServiceTestSuite) createRoutine(title string, days ...string) *TaskDetail {
	detail, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    suite.user.ID,
		GroupID:   suite.group.ID,
		Title:     title,
		IsRoutine: true,
		Days:      days,
	})
	suite.Require().NoError(err)
	return detail
}

func (suite *TaskServiceTestSuite) createOneTime(title string) *TaskDetail {
	detail, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: suite.group.ID,
		Title:   title,
	})
	suite.Require().NoError(err)
	return detail
}

func (suite *TaskServiceTestSuite) instancesOf(taskID uint64) []models.TaskInstance {
	var instances []models.TaskInstance
	suite.Require().NoError(suite.db.Where("task_id = ?", taskID).Order("occurred_on").Find(&instances).Error)
	return instances
}

func (suite *TaskServiceTestSuite) linkedPeriods(taskID uint64) []uint64 {
	var ids []uint64
	suite.Require().NoError(suite.db.Model(&models.TaskPeriod{}).
		Where("task_id = ?", taskID).
		Order("period_id").
		Pluck("period_id", &ids).Error)
	return ids
}

func (suite *TaskServiceTestSuite) achievementCount(taskID uint64) int {
	var task models.Task
	suite.Require().NoError(suite.db.First(&task, taskID).Error)
	return task.AchievementCount
}

func (suite *TaskServiceTestSuite) TestCreateTask_RoutineRecurringToday() {
	detail := suite.createRoutine("Stretch", "Wed", "Mon")

	assert.Equal(suite.T(), []string{"Mon", "Wed"}, detail.Days)
	assert.True(suite.T(), detail.Task.StartAt.Equal(day(2024, 5, 15)))
	assert.Equal(suite.T(), 0, detail.Task.AchievementCount)
	assert.Equal(suite.T(), []uint64{1, 3}, suite.linkedPeriods(detail.Task.ID))

	instances := suite.instancesOf(detail.Task.ID)
	suite.Require().Len(instances, 1)
	assert.True(suite.T(), instances[0].OccurredOn.Equal(day(2024, 5, 15)))
	assert.False(suite.T(), instances[0].IsAchievement)
	assert.True(suite.T(), instances[0].IsRoutine)
	assert.Equal(suite.T(), "Stretch", instances[0].Title)
}

func (suite *TaskServiceTestSuite) TestCreateTask_RoutineNotRecurringToday() {
	detail := suite.createRoutine("Run", "Thu")

	assert.Empty(suite.T(), suite.instancesOf(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestCreateTask_OneTimeHasNoInstanceOrPeriods() {
	detail := suite.createOneTime("Read a book")

	assert.Empty(suite.T(), detail.Days)
	assert.Empty(suite.T(), suite.linkedPeriods(detail.Task.ID))
	assert.Empty(suite.T(), suite.instancesOf(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestCreateTask_NormalizesDuplicateDays() {
	detail := suite.createRoutine("Stretch", "fri", " Fri ", "FRI")

	assert.Equal(suite.T(), []string{"Fri"}, detail.Days)
	assert.Equal(suite.T(), []uint64{5}, suite.linkedPeriods(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestCreateTask_Validation() {
	tests := []struct {
		name  string
		input CreateTaskInput
		want  error
		kind  error
	}{
		{
			name:  "empty title",
			input: CreateTaskInput{Title: "  ", IsRoutine: false},
			want:  ErrTitleRequired,
			kind:  ErrValidation,
		},
		{
			name:  "routine without days",
			input: CreateTaskInput{Title: "Stretch", IsRoutine: true},
			want:  ErrInvalidPeriod,
			kind:  ErrValidation,
		},
		{
			name:  "routine with empty days",
			input: CreateTaskInput{Title: "Stretch", IsRoutine: true, Days: []string{}},
			want:  ErrInvalidPeriod,
			kind:  ErrValidation,
		},
		{
			name:  "one-time with days",
			input: CreateTaskInput{Title: "Read", IsRoutine: false, Days: []string{"Mon"}},
			want:  ErrInvalidPeriod,
			kind:  ErrValidation,
		},
		{
			name:  "unknown day",
			input: CreateTaskInput{Title: "Stretch", IsRoutine: true, Days: []string{"Mon", "Funday"}},
			want:  ErrUnknownDay,
			kind:  ErrNotFound,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			tt.input.UserID = suite.user.ID
			tt.input.GroupID = suite.group.ID

			_, err := suite.service.CreateTask(suite.ctx, tt.input)

			assert.ErrorIs(suite.T(), err, tt.want)
			assert.ErrorIs(suite.T(), err, tt.kind)
		})
	}

	var count int64
	suite.db.Model(&models.Task{}).Count(&count)
	assert.Equal(suite.T(), int64(0), count)
}

func (suite *TaskServiceTestSuite) TestCreateTask_GroupOfAnotherUser() {
	stranger := testutils.CreateUser(suite.T(), suite.db, "stranger")

	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  stranger.ID,
		GroupID: suite.group.ID,
		Title:   "Sneaky",
	})

	assert.ErrorIs(suite.T(), err, ErrGroupNotFound)
}

func (suite *TaskServiceTestSuite) TestCreateTask_MissingGroup() {
	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: 999,
		Title:   "Orphan",
	})

	assert.ErrorIs(suite.T(), err, ErrGroupNotFound)
}

func (suite *TaskServiceTestSuite) TestCreateTask_ActiveTaskCap() {
	for i := 0; i < constants.MaxActiveTasksPerGroup; i++ {
		suite.createOneTime("Task")
	}

	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: suite.group.ID,
		Title:   "One too many",
	})
	assert.ErrorIs(suite.T(), err, ErrTooManyTasks)
	assert.ErrorIs(suite.T(), err, ErrCapacityExceeded)

	// An end date of today is exclusive, so this task is already inactive.
	endAt := day(2024, 5, 15)
	_, err = suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: suite.group.ID,
		Title:   "Expired",
		EndAt:   &endAt,
	})
	assert.NoError(suite.T(), err)

	// Other groups have their own budget.
	other := testutils.CreateGroup(suite.T(), suite.db, suite.user.ID, "Study")
	_, err = suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: other.ID,
		Title:   "Fresh",
	})
	assert.NoError(suite.T(), err)
}

func (suite *TaskServiceTestSuite) TestCreateTask_ExpiredTasksFreeCapacity() {
	var first *TaskDetail
	for i := 0; i < constants.MaxActiveTasksPerGroup; i++ {
		detail := suite.createOneTime("Task")
		if first == nil {
			first = detail
		}
	}
	suite.Require().NoError(suite.db.Model(&models.Task{}).
		Where("id = ?", first.Task.ID).
		Update("end_at", day(2024, 5, 10)).Error)

	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: suite.group.ID,
		Title:   "Replacement",
	})
	assert.NoError(suite.T(), err)
}

func (suite *TaskServiceTestSuite) TestCreateTask_ExpiredRoutineSkipsTodayInstance() {
	endAt := day(2024, 5, 15)
	detail, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    suite.user.ID,
		GroupID:   suite.group.ID,
		Title:     "Stretch",
		IsRoutine: true,
		Days:      []string{"Wed"},
		EndAt:     &endAt,
	})
	suite.Require().NoError(err)

	assert.Empty(suite.T(), suite.instancesOf(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestUpdateTask_DiffsDays() {
	detail := suite.createRoutine("Stretch", "Mon", "Wed")
	suite.Require().Len(suite.instancesOf(detail.Task.ID), 1)

	days := []string{"Wed", "Fri"}
	updated, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{Days: &days})
	suite.Require().NoError(err)

	assert.Equal(suite.T(), []string{"Wed", "Fri"}, updated.Days)
	assert.Equal(suite.T(), []uint64{3, 5}, suite.linkedPeriods(detail.Task.ID))

	// Wednesday was already linked, so no second instance appears.
	assert.Len(suite.T(), suite.instancesOf(detail.Task.ID), 1)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_AddingTodayMaterializes() {
	detail := suite.createRoutine("Stretch", "Mon")
	suite.Require().Empty(suite.instancesOf(detail.Task.ID))

	days := []string{"Mon", "Wed"}
	_, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{Days: &days})
	suite.Require().NoError(err)

	instances := suite.instancesOf(detail.Task.ID)
	suite.Require().Len(instances, 1)
	assert.True(suite.T(), instances[0].OccurredOn.Equal(day(2024, 5, 15)))

	// Removing and re-adding today keeps a single instance.
	days = []string{"Mon"}
	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{Days: &days})
	suite.Require().NoError(err)
	days = []string{"Wed"}
	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{Days: &days})
	suite.Require().NoError(err)

	assert.Len(suite.T(), suite.instancesOf(detail.Task.ID), 1)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_ToOneTimeDropsPeriods() {
	detail := suite.createRoutine("Stretch", "Mon", "Wed")

	isRoutine := false
	updated, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{IsRoutine: &isRoutine})
	suite.Require().NoError(err)

	assert.False(suite.T(), updated.Task.IsRoutine)
	assert.Empty(suite.T(), updated.Days)
	assert.Empty(suite.T(), suite.linkedPeriods(detail.Task.ID))

	instances := suite.instancesOf(detail.Task.ID)
	suite.Require().Len(instances, 1)
	assert.False(suite.T(), instances[0].IsRoutine)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_ToRoutineNeedsDays() {
	detail := suite.createOneTime("Read")

	isRoutine := true
	_, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{IsRoutine: &isRoutine})
	assert.ErrorIs(suite.T(), err, ErrInvalidPeriod)

	days := []string{}
	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{IsRoutine: &isRoutine, Days: &days})
	assert.ErrorIs(suite.T(), err, ErrInvalidPeriod)

	days = []string{"Sat"}
	updated, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{IsRoutine: &isRoutine, Days: &days})
	suite.Require().NoError(err)
	assert.True(suite.T(), updated.Task.IsRoutine)
	assert.Equal(suite.T(), []string{"Sat"}, updated.Days)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_DaysOnOneTimeRejected() {
	detail := suite.createOneTime("Read")

	days := []string{"Mon"}
	_, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{Days: &days})

	assert.ErrorIs(suite.T(), err, ErrInvalidPeriod)
	assert.Empty(suite.T(), suite.linkedPeriods(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestUpdateTask_TitleRelinksInstances() {
	detail := suite.createRoutine("Stretch", "Wed")

	title := "  Morning stretch  "
	updated, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{Title: &title})
	suite.Require().NoError(err)

	assert.Equal(suite.T(), "Morning stretch", updated.Task.Title)
	assert.Equal(suite.T(), []string{"Wed"}, updated.Days)

	instances := suite.instancesOf(detail.Task.ID)
	suite.Require().Len(instances, 1)
	assert.Equal(suite.T(), "Morning stretch", instances[0].Title)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_EndAt() {
	detail := suite.createOneTime("Read")

	endAt := time.Date(2024, 6, 1, 18, 30, 0, 0, time.UTC)
	updated, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{EndAt: &endAt})
	suite.Require().NoError(err)
	suite.Require().NotNil(updated.Task.EndAt)
	assert.True(suite.T(), updated.Task.EndAt.Equal(day(2024, 6, 1)))

	updated, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, detail.Task.ID, UpdateTaskInput{ClearEndAt: true})
	suite.Require().NoError(err)
	assert.Nil(suite.T(), updated.Task.EndAt)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_ReviveRespectsActiveTaskCap() {
	endAt := day(2024, 5, 10)
	expired, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: suite.group.ID,
		Title:   "Old habit",
		EndAt:   &endAt,
	})
	suite.Require().NoError(err)

	for i := 0; i < constants.MaxActiveTasksPerGroup; i++ {
		suite.createOneTime("Task")
	}

	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, expired.Task.ID, UpdateTaskInput{ClearEndAt: true})
	assert.ErrorIs(suite.T(), err, ErrTooManyTasks)

	later := day(2024, 6, 1)
	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, expired.Task.ID, UpdateTaskInput{EndAt: &later})
	assert.ErrorIs(suite.T(), err, ErrTooManyTasks)

	// The rejected update is rolled back.
	var stored models.Task
	suite.Require().NoError(suite.db.First(&stored, expired.Task.ID).Error)
	suite.Require().NotNil(stored.EndAt)
	assert.True(suite.T(), stored.EndAt.Equal(day(2024, 5, 10)))

	// Editing an already-active task never hits the cap, and moving an expired end date
	// to another past date keeps the task inactive.
	active := suite.createdTaskIDs()[1]
	title := "Renamed"
	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, active, UpdateTaskInput{Title: &title})
	assert.NoError(suite.T(), err)

	earlier := day(2024, 5, 1)
	_, err = suite.service.UpdateTask(suite.ctx, suite.user.ID, expired.Task.ID, UpdateTaskInput{EndAt: &earlier})
	assert.NoError(suite.T(), err)
}

func (suite *TaskServiceTestSuite) TestUpdateTask_ReviveWithFreeSlot() {
	endAt := day(2024, 5, 10)
	expired, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:  suite.user.ID,
		GroupID: suite.group.ID,
		Title:   "Old habit",
		EndAt:   &endAt,
	})
	suite.Require().NoError(err)

	detail, err := suite.service.UpdateTask(suite.ctx, suite.user.ID, expired.Task.ID, UpdateTaskInput{ClearEndAt: true})
	suite.Require().NoError(err)
	assert.Nil(suite.T(), detail.Task.EndAt)
}

func (suite *TaskServiceTestSuite) createdTaskIDs() []uint64 {
	var ids []uint64
	suite.Require().NoError(suite.db.Model(&models.Task{}).Order("id").Pluck("id", &ids).Error)
	return ids
}

func (suite *TaskServiceTestSuite) TestUpdateTask_NotOwned() {
	detail := suite.createOneTime("Read")
	stranger := testutils.CreateUser(suite.T(), suite.db, "stranger")

	title := "Mine now"
	_, err := suite.service.UpdateTask(suite.ctx, stranger.ID, detail.Task.ID, UpdateTaskInput{Title: &title})

	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestDeleteTask_RemovesLinksAndInstances() {
	detail := suite.createRoutine("Stretch", "Wed")

	suite.Require().NoError(suite.service.DeleteTask(suite.ctx, suite.user.ID, detail.Task.ID))

	assert.Empty(suite.T(), suite.linkedPeriods(detail.Task.ID))
	assert.Empty(suite.T(), suite.instancesOf(detail.Task.ID))

	_, err := suite.service.GetTaskDetail(suite.ctx, suite.user.ID, detail.Task.ID)
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestStartTask() {
	detail := suite.createOneTime("Read")

	result, err := suite.service.StartTask(suite.ctx, suite.user.ID, detail.Task.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), result.Instance.OccurredOn.Equal(day(2024, 5, 15)))
	assert.False(suite.T(), result.Instance.IsAchievement)
	assert.False(suite.T(), result.Instance.IsRoutine)

	_, err = suite.service.StartTask(suite.ctx, suite.user.ID, detail.Task.ID)
	assert.ErrorIs(suite.T(), err, ErrAlreadyStarted)
	assert.ErrorIs(suite.T(), err, ErrConflict)
	assert.Len(suite.T(), suite.instancesOf(detail.Task.ID), 1)

	// The next day allows another start.
	_, err = suite.serviceAt(testNow.AddDate(0, 0, 1)).StartTask(suite.ctx, suite.user.ID, detail.Task.ID)
	assert.NoError(suite.T(), err)
}

func (suite *TaskServiceTestSuite) TestStartTask_Rejections() {
	routine := suite.createRoutine("Stretch", "Mon")
	_, err := suite.service.StartTask(suite.ctx, suite.user.ID, routine.Task.ID)
	assert.ErrorIs(suite.T(), err, ErrRoutineNotStartable)

	_, err = suite.service.StartTask(suite.ctx, suite.user.ID, 999)
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)

	oneTime := suite.createOneTime("Read")
	stranger := testutils.CreateUser(suite.T(), suite.db, "stranger")
	_, err = suite.service.StartTask(suite.ctx, stranger.ID, oneTime.Task.ID)
	assert.ErrorIs(suite.T(), err, ErrTaskNotFound)
}

func (suite *TaskServiceTestSuite) TestSucceedAndFailInstance() {
	detail := suite.createRoutine("Stretch", "Wed")
	instance := suite.instancesOf(detail.Task.ID)[0]

	result, err := suite.service.SucceedInstance(suite.ctx, suite.user.ID, instance.ID)
	suite.Require().NoError(err)
	assert.True(suite.T(), result.Instance.IsAchievement)
	assert.Equal(suite.T(), 1, result.Task.AchievementCount)

	_, err = suite.service.SucceedInstance(suite.ctx, suite.user.ID, instance.ID)
	assert.ErrorIs(suite.T(), err, ErrAlreadyAchieved)
	assert.Equal(suite.T(), 1, suite.achievementCount(detail.Task.ID))

	result, err = suite.service.FailInstance(suite.ctx, suite.user.ID, instance.ID)
	suite.Require().NoError(err)
	assert.False(suite.T(), result.Instance.IsAchievement)
	assert.Equal(suite.T(), 0, result.Task.AchievementCount)

	_, err = suite.service.FailInstance(suite.ctx, suite.user.ID, instance.ID)
	assert.ErrorIs(suite.T(), err, ErrNotAchieved)
	assert.Equal(suite.T(), 0, suite.achievementCount(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestFailInstance_CounterNeverNegative() {
	detail := suite.createRoutine("Stretch", "Wed")
	instance := suite.instancesOf(detail.Task.ID)[0]

	// Simulate drift: the instance is achieved but the counter was never bumped.
	suite.Require().NoError(suite.db.Model(&models.TaskInstance{}).
		Where("id = ?", instance.ID).
		Update("is_achievement", true).Error)

	result, err := suite.service.FailInstance(suite.ctx, suite.user.ID, instance.ID)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 0, result.Task.AchievementCount)
	assert.Equal(suite.T(), 0, suite.achievementCount(detail.Task.ID))
}

func (suite *TaskServiceTestSuite) TestSucceedInstance_NotOwned() {
	detail := suite.createRoutine("Stretch", "Wed")
	instance := suite.instancesOf(detail.Task.ID)[0]
	stranger := testutils.CreateUser(suite.T(), suite.db, "stranger")

	_, err := suite.service.SucceedInstance(suite.ctx, stranger.ID, instance.ID)
	assert.ErrorIs(suite.T(), err, ErrInstanceNotFound)

	_, err = suite.service.SucceedInstance(suite.ctx, suite.user.ID, 999)
	assert.ErrorIs(suite.T(), err, ErrInstanceNotFound)

	assert.Equal(suite.T(), 0, suite.achievementCount(detail.Task.ID))
}

// toggleConcurrently runs toggle from several goroutines at once and returns every error.
func (suite *TaskServiceTestSuite) toggleConcurrently(workers int, toggle func() error) []error {
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = toggle()
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func (suite *TaskServiceTestSuite) TestSucceedInstance_ConcurrentCallsCountOnce() {
	detail := suite.createRoutine("Stretch", "Wed")
	instance := suite.instancesOf(detail.Task.ID)[0]

	errs := suite.toggleConcurrently(8, func() error {
		_, err := suite.service.SucceedInstance(suite.ctx, suite.user.ID, instance.ID)
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// Losers see the flag already set, or the store refused the competing write.
		assert.NotErrorIs(suite.T(), err, ErrNotAchieved)
		assert.NotErrorIs(suite.T(), err, ErrInstanceNotFound)
	}
	assert.Equal(suite.T(), 1, succeeded)
	assert.Equal(suite.T(), 1, suite.achievementCount(detail.Task.ID))
	assert.True(suite.T(), suite.instancesOf(detail.Task.ID)[0].IsAchievement)
}

func (suite *TaskServiceTestSuite) TestFailInstance_ConcurrentCallsCountOnce() {
	detail := suite.createRoutine("Stretch", "Wed")
	instance := suite.instancesOf(detail.Task.ID)[0]

	// Start from a counter above one so a double decrement would show.
	suite.Require().NoError(suite.db.Model(&models.TaskInstance{}).
		Where("id = ?", instance.ID).
		Update("is_achievement", true).Error)
	suite.Require().NoError(suite.db.Model(&models.Task{}).
		Where("id = ?", detail.Task.ID).
		Update("achievement_count", 5).Error)

	errs := suite.toggleConcurrently(8, func() error {
		_, err := suite.service.FailInstance(suite.ctx, suite.user.ID, instance.ID)
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.NotErrorIs(suite.T(), err, ErrAlreadyAchieved)
		assert.NotErrorIs(suite.T(), err, ErrInstanceNotFound)
	}
	assert.Equal(suite.T(), 1, succeeded)
	assert.Equal(suite.T(), 4, suite.achievementCount(detail.Task.ID))
	assert.False(suite.T(), suite.instancesOf(detail.Task.ID)[0].IsAchievement)
}

func (suite *TaskServiceTestSuite) TestGetOneTimeInstances() {
	started := suite.createOneTime("Read")
	idle := suite.createOneTime("Write")
	suite.createRoutine("Stretch", "Wed")

	_, err := suite.service.StartTask(suite.ctx, suite.user.ID, started.Task.ID)
	suite.Require().NoError(err)

	tasks, err := suite.service.GetOneTimeInstances(suite.ctx, suite.user.ID, day(2024, 5, 15))
	suite.Require().NoError(err)
	suite.Require().Len(tasks, 2)

	byID := map[uint64]OneTimeTask{}
	for _, task := range tasks {
		byID[task.Task.ID] = task
	}
	assert.NotNil(suite.T(), byID[started.Task.ID].Instance)
	assert.Nil(suite.T(), byID[idle.Task.ID].Instance)

	tasks, err = suite.service.GetOneTimeInstances(suite.ctx, suite.user.ID, day(2024, 5, 16))
	suite.Require().NoError(err)
	for _, task := range tasks {
		assert.Nil(suite.T(), task.Instance)
	}
}

func (suite *TaskServiceTestSuite) TestCreateRoutineInstancesForToday() {
	thursday := suite.createRoutine("Run", "Thu")
	suite.createRoutine("Stretch", "Wed")
	suite.createOneTime("Read")

	endAt := day(2024, 5, 16)
	expired, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    suite.user.ID,
		GroupID:   suite.group.ID,
		Title:     "Ends Thursday",
		IsRoutine: true,
		Days:      []string{"Thu"},
		EndAt:     &endAt,
	})
	suite.Require().NoError(err)

	other := testutils.CreateUser(suite.T(), suite.db, "other")
	otherGroup := testutils.CreateGroup(suite.T(), suite.db, other.ID, "Other")
	otherTask, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    other.ID,
		GroupID:   otherGroup.ID,
		Title:     "Swim",
		IsRoutine: true,
		Days:      []string{"Thu"},
	})
	suite.Require().NoError(err)

	service := suite.serviceAt(testNow.AddDate(0, 0, 1))

	created, err := service.CreateRoutineInstancesForToday(suite.ctx)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 2, created)

	instances := suite.instancesOf(thursday.Task.ID)
	suite.Require().Len(instances, 1)
	assert.True(suite.T(), instances[0].OccurredOn.Equal(day(2024, 5, 16)))
	assert.Len(suite.T(), suite.instancesOf(otherTask.Task.ID), 1)
	assert.Empty(suite.T(), suite.instancesOf(expired.Task.ID))

	created, err = service.CreateRoutineInstancesForToday(suite.ctx)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), 0, created)
	assert.Len(suite.T(), suite.instancesOf(thursday.Task.ID), 1)
}

func (suite *TaskServiceTestSuite) TestGetRoutineInstances_EmptyRange() {
	suite.createRoutine("Stretch", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun")

	occurrences, err := suite.service.GetRoutineInstances(suite.ctx, suite.user.ID, day(2024, 5, 20), day(2024, 5, 20))
	suite.Require().NoError(err)
	assert.NotNil(suite.T(), occurrences)
	assert.Empty(suite.T(), occurrences)

	occurrences, err = suite.service.GetRoutineInstances(suite.ctx, suite.user.ID, day(2024, 5, 21), day(2024, 5, 20))
	suite.Require().NoError(err)
	assert.Empty(suite.T(), occurrences)
}

func (suite *TaskServiceTestSuite) TestGetRoutineInstances_RangeTooLong() {
	_, err := suite.service.GetRoutineInstances(suite.ctx, suite.user.ID, day(2024, 1, 1), day(2025, 6, 1))

	assert.ErrorIs(suite.T(), err, ErrInvalidDateRange)
	assert.True(suite.T(), errors.Is(err, ErrValidation))
}

func (suite *TaskServiceTestSuite) TestGetRoutineInstances_BlendsMaterializedAndProjected() {
	stretch := suite.createRoutine("Stretch", "Mon", "Wed", "Fri")
	read := suite.createOneTime("Read")
	_, err := suite.service.StartTask(suite.ctx, suite.user.ID, read.Task.ID)
	suite.Require().NoError(err)

	occurrences, err := suite.service.GetRoutineInstances(suite.ctx, suite.user.ID, day(2024, 5, 13), day(2024, 5, 27))
	suite.Require().NoError(err)

	var materialized, projected []Occurrence
	for _, o := range occurrences {
		if o.Projected {
			projected = append(projected, o)
		} else {
			materialized = append(materialized, o)
		}
	}

	// Today's routine and one-time instances are persisted.
	suite.Require().Len(materialized, 2)
	for _, o := range materialized {
		assert.True(suite.T(), o.Date.Equal(day(2024, 5, 15)))
		assert.Positive(suite.T(), o.InstanceID)
	}

	// Fri 17, Mon 20, Wed 22, Fri 24 are projected; the one-time task never is.
	suite.Require().Len(projected, 4)
	wantDates := []time.Time{day(2024, 5, 17), day(2024, 5, 20), day(2024, 5, 22), day(2024, 5, 24)}
	for i, o := range projected {
		assert.True(suite.T(), o.Date.Equal(wantDates[i]), "projected[%d] = %s", i, o.Date)
		assert.Equal(suite.T(), constants.ProjectedInstanceID, o.InstanceID)
		assert.Equal(suite.T(), stretch.Task.ID, o.TaskID)
		assert.True(suite.T(), o.IsRoutine)
		assert.False(suite.T(), o.IsAchievement)
	}

	// Materialized records come before projected ones.
	assert.False(suite.T(), occurrences[0].Projected)
	assert.False(suite.T(), occurrences[1].Projected)
}

func (suite *TaskServiceTestSuite) TestGetRoutineInstances_EndAtIsExclusive() {
	endAt := day(2024, 5, 22)
	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    suite.user.ID,
		GroupID:   suite.group.ID,
		Title:     "Until next Wednesday",
		IsRoutine: true,
		Days:      []string{"Wed"},
		EndAt:     &endAt,
	})
	suite.Require().NoError(err)

	occurrences, err := suite.service.GetRoutineInstances(suite.ctx, suite.user.ID, day(2024, 5, 16), day(2024, 6, 1))
	suite.Require().NoError(err)
	assert.Empty(suite.T(), occurrences)
}

func (suite *TaskServiceTestSuite) TestGetRoutineInstances_ExcludesOtherUsers() {
	other := testutils.CreateUser(suite.T(), suite.db, "other")
	otherGroup := testutils.CreateGroup(suite.T(), suite.db, other.ID, "Other")
	_, err := suite.service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    other.ID,
		GroupID:   otherGroup.ID,
		Title:     "Swim",
		IsRoutine: true,
		Days:      []string{"Wed", "Thu"},
	})
	suite.Require().NoError(err)

	occurrences, err := suite.service.GetRoutineInstances(suite.ctx, suite.user.ID, day(2024, 5, 13), day(2024, 5, 20))
	suite.Require().NoError(err)
	assert.Empty(suite.T(), occurrences)
}

func (suite *TaskServiceTestSuite) TestGetDayInstances() {
	suite.createRoutine("Stretch", "Wed")
	suite.createRoutine("Run", "Thu")

	today, err := suite.service.GetDayInstances(suite.ctx, suite.user.ID, day(2024, 5, 15))
	suite.Require().NoError(err)
	suite.Require().Len(today, 1)
	assert.Equal(suite.T(), "Stretch", today[0].Title)
	assert.False(suite.T(), today[0].Projected)

	tomorrow, err := suite.service.GetDayInstances(suite.ctx, suite.user.ID, time.Date(2024, 5, 16, 23, 0, 0, 0, time.UTC))
	suite.Require().NoError(err)
	suite.Require().Len(tomorrow, 1)
	assert.Equal(suite.T(), "Run", tomorrow[0].Title)
	assert.True(suite.T(), tomorrow[0].Projected)

	// Past days without instances stay empty; nothing is projected backwards.
	yesterday, err := suite.service.GetDayInstances(suite.ctx, suite.user.ID, day(2024, 5, 14))
	suite.Require().NoError(err)
	assert.Empty(suite.T(), yesterday)
}

func (suite *TaskServiceTestSuite) TestGetRoutineInstances_NonUTCZone() {
	seoul := time.FixedZone("KST", 9*60*60)
	// Wed 08:00 in Seoul, Tue 23:00 in UTC.
	service := suite.serviceAt(time.Date(2024, 5, 15, 8, 0, 0, 0, seoul))

	detail, err := service.CreateTask(suite.ctx, CreateTaskInput{
		UserID:    suite.user.ID,
		GroupID:   suite.group.ID,
		Title:     "Stretch",
		IsRoutine: true,
		Days:      []string{"Wed", "Thu"},
	})
	suite.Require().NoError(err)
	assert.Equal(suite.T(), "2024-05-15", utils.FormatDate(utils.DateIn(detail.Task.StartAt, seoul)))

	instances := suite.instancesOf(detail.Task.ID)
	suite.Require().Len(instances, 1)
	assert.Equal(suite.T(), "2024-05-15", utils.FormatDate(utils.DateIn(instances[0].OccurredOn, seoul)))

	start := time.Date(2024, 5, 14, 0, 0, 0, 0, seoul)
	occurrences, err := service.GetRoutineInstances(suite.ctx, suite.user.ID, start, start.AddDate(0, 0, 3))
	suite.Require().NoError(err)
	suite.Require().Len(occurrences, 2)

	assert.False(suite.T(), occurrences[0].Projected)
	assert.Equal(suite.T(), "2024-05-15", utils.FormatDate(occurrences[0].Date))
	assert.True(suite.T(), occurrences[1].Projected)
	assert.Equal(suite.T(), "2024-05-16", utils.FormatDate(occurrences[1].Date))
}

func (suite *TaskServiceTestSuite) TestSuggestTasks_NotConfigured() {
	_, err := suite.service.SuggestTasks(suite.ctx, suite.user.ID, suite.group.ID, "sleep better")

	assert.ErrorIs(suite.T(), err, ErrAIServiceNotConfigured)
}

// TestTaskServiceTestSuite runs the test suite
func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
