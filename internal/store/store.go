package store

import (
	"context"

	"github.com/nhle/listadmin/internal/model"
)

// TaskFilter narrows task queries. Zero values match everything.
type TaskFilter struct {
	TaskType model.TaskType
	ListIDs  []string
}

// CalendarFilter selects statistics entries in an inclusive date range.
type CalendarFilter struct {
	From    string // YYYY-MM-DD
	To      string // YYYY-MM-DD
	ListIDs []string
}

// EventFilter controls event feed queries.
type EventFilter struct {
	// Kinds restricts the feed to decisions on these task types.
	Kinds []model.TaskType
	Limit int
}

// Store defines the persistence interface for admin tasks, the statistics
// calendar, and the event log.
type Store interface {
	// === Admin tasks ===

	// InsertTask stores a task unless one with the same (task_type, task_id)
	// exists. It reports whether a row was inserted.
	InsertTask(ctx context.Context, task model.AdminTask) (bool, error)

	// RecordNewTask inserts a synchronized task and, only when the insert
	// took effect, increments the calendar entry for the task's day, list,
	// and type. Both writes share one transaction.
	RecordNewTask(ctx context.Context, task model.AdminTask) (bool, error)

	// CreateManualTask allocates the next manual task id and stores the task.
	CreateManualTask(ctx context.Context, task model.AdminTask) (model.AdminTask, error)

	GetTasks(ctx context.Context, filter TaskFilter) ([]model.AdminTask, error)
	FindTask(ctx context.Context, taskType model.TaskType, taskID string) (model.AdminTask, bool, error)
	CountTasks(ctx context.Context, taskType model.TaskType) (int, error)
	TaskIDs(ctx context.Context, taskType model.TaskType) (map[string]bool, error)
	UpdateTaskPriority(ctx context.Context, id int64, priority int) error
	DeleteTask(ctx context.Context, taskType model.TaskType, taskID string) (bool, error)

	// === Statistics calendar ===

	IncrementCalendar(ctx context.Context, onDate, listID string, logType model.TaskType) error
	GetCalendar(ctx context.Context, filter CalendarFilter) ([]model.CalendarEntry, error)

	// === Event log ===

	CreateEvent(ctx context.Context, e model.Event) (model.Event, error)
	GetEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)
}
