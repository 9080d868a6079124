package constants

// Session and context keys
const (
	ContextKeyUserID  = "user_id"
	SessionCookieName = "task_session"
)

// Authentication
const (
	MinPasswordLength = 8
)

// Task limits
const (
	// MaxActiveTasksPerGroup caps tasks whose end date is unset or still ahead.
	MaxActiveTasksPerGroup = 8
	MaxAISuggestedTasks    = 8
)

// ProjectedInstanceID marks an occurrence computed from a recurrence pattern
// that has no persisted instance yet.
const ProjectedInstanceID int64 = -1

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DefaultGroupTitle names the group created for every new user.
const DefaultGroupTitle = "My routines"

// Pagination
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// MaxResolveDays bounds the length of a recurrence query range.
const MaxResolveDays = 366
