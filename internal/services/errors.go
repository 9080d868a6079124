package services

import (
	"errors"
	"fmt"

	"github.com/yukikurage/microtask-api/internal/constants"
)

// Error kinds. Every *Error unwraps to exactly one of them.
var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrConflict         = errors.New("conflict")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

// Error is a domain failure with a stable code for API clients.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrGroupNotFound    = newError(ErrNotFound, "GROUP_NOT_FOUND", "group not found")
	ErrTaskNotFound     = newError(ErrNotFound, "TASK_NOT_FOUND", "task not found")
	ErrInstanceNotFound = newError(ErrNotFound, "INSTANCE_NOT_FOUND", "task instance not found")
	ErrUnknownDay       = newError(ErrNotFound, "UNKNOWN_DAY", "unknown day name")

	ErrTitleRequired    = newError(ErrValidation, "TITLE_REQUIRED", "title is required")
	ErrInvalidPeriod    = newError(ErrValidation, "INVALID_PERIOD", "routine tasks need at least one day and only routine tasks may have days")
	ErrInvalidColor     = newError(ErrValidation, "INVALID_COLOR", "color must look like #rrggbb")
	ErrInvalidDateRange = newError(ErrValidation, "INVALID_DATE_RANGE", "date range is too long")
	ErrGoalRequired     = newError(ErrValidation, "GOAL_REQUIRED", "goal is required")

	ErrTooManyTasks = newError(ErrCapacityExceeded, "EXCEED_MAX_TASKS", "group already has the maximum number of active tasks")

	ErrRoutineNotStartable = newError(ErrConflict, "ROUTINE_NOT_STARTABLE", "routine tasks are started automatically")
	ErrAlreadyStarted      = newError(ErrConflict, "ALREADY_STARTED", "task was already started today")
	ErrAlreadyAchieved     = newError(ErrConflict, "ALREADY_ACHIEVED", "task instance is already achieved")
	ErrNotAchieved         = newError(ErrConflict, "NOT_ACHIEVED", "task instance is not achieved yet")

	ErrUsernameRequired   = newError(ErrValidation, "USERNAME_REQUIRED", "username is required")
	ErrPasswordTooShort   = newError(ErrValidation, "PASSWORD_TOO_SHORT", fmt.Sprintf("password must be at least %d characters", constants.MinPasswordLength))
	ErrUsernameTaken      = newError(ErrConflict, "USERNAME_TAKEN", "username already exists")
	ErrUserNotFound       = newError(ErrNotFound, "USER_NOT_FOUND", "user not found")
	ErrInvalidCredentials = newError(ErrUnauthenticated, "INVALID_CREDENTIALS", "invalid username or password")
)
