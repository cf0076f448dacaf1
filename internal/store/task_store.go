package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/listadmin/internal/model"
)

const insertTaskSQL = `
	INSERT OR IGNORE INTO admin_tasks (
		task_id, task_type, made_on, user_email, list_id,
		priority, msg_subject, msg_data
	) VALUES (
		:task_id, :task_type, :made_on, :user_email, :list_id,
		:priority, :msg_subject, :msg_data
	)`

// InsertTask stores a task unless one with the same (task_type, task_id)
// already exists.
func (s *SQLiteStore) InsertTask(ctx context.Context, task model.AdminTask) (bool, error) {
	return insertTask(ctx, s.db, task)
}

// RecordNewTask inserts a synchronized task and bumps the statistics
// calendar in the same transaction. The calendar is left untouched when the
// task already existed.
func (s *SQLiteStore) RecordNewTask(ctx context.Context, task model.AdminTask) (bool, error) {
	if task.IsManual() {
		return false, fmt.Errorf("recording task %s: manual tasks are not synchronized", task.TaskID)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, err := insertTask(ctx, tx, task)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	onDate := model.CalendarDate(task.MadeOn)
	if err := incrementCalendar(ctx, tx, onDate, task.ListID, task.TaskType); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing task %s: %w", task.TaskID, err)
	}
	return true, nil
}

// CreateManualTask assigns the task the id one below the smallest existing
// manual id (or -1 when there are none) and stores it.
func (s *SQLiteStore) CreateManualTask(
	ctx context.Context,
	task model.AdminTask,
) (model.AdminTask, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.AdminTask{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var minID sql.NullInt64
	err = tx.GetContext(ctx, &minID,
		"SELECT MIN(CAST(task_id AS INTEGER)) FROM admin_tasks WHERE task_type = ?",
		model.TaskTypeManual,
	)
	if err != nil {
		return model.AdminTask{}, fmt.Errorf("reading manual task ids: %w", err)
	}

	next := int64(-1)
	if minID.Valid && minID.Int64 <= -1 {
		next = minID.Int64 - 1
	}

	task.TaskType = model.TaskTypeManual
	task.TaskID = strconv.FormatInt(next, 10)
	task.ListID = ""
	task.Priority = model.PriorityUnset

	inserted, err := insertTask(ctx, tx, task)
	if err != nil {
		return model.AdminTask{}, err
	}
	if !inserted {
		return model.AdminTask{}, fmt.Errorf("manual task id %s already taken", task.TaskID)
	}

	if err := tx.GetContext(ctx, &task.ID,
		"SELECT id FROM admin_tasks WHERE task_type = ? AND task_id = ?",
		task.TaskType, task.TaskID,
	); err != nil {
		return model.AdminTask{}, fmt.Errorf("reading manual task row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.AdminTask{}, fmt.Errorf("committing manual task: %w", err)
	}
	return task, nil
}

// GetTasks retrieves tasks matching the filter, ordered by priority then
// age, newest first.
func (s *SQLiteStore) GetTasks(
	ctx context.Context,
	opts TaskFilter,
) ([]model.AdminTask, error) {
	var conditions []string
	var args []interface{}

	if opts.TaskType != "" {
		conditions = append(conditions, "task_type = ?")
		args = append(args, string(opts.TaskType))
	}
	if len(opts.ListIDs) > 0 {
		conditions = append(conditions, "list_id IN (?)")
		args = append(args, opts.ListIDs)
	}

	query := "SELECT * FROM admin_tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority DESC, made_on DESC, id DESC"

	if len(opts.ListIDs) > 0 {
		var err error
		query, args, err = s.inClause(query, args...)
		if err != nil {
			return nil, err
		}
	}

	var tasks []model.AdminTask
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// FindTask looks a task up by its type and task id. The boolean reports
// whether a task was found.
func (s *SQLiteStore) FindTask(
	ctx context.Context,
	taskType model.TaskType,
	taskID string,
) (model.AdminTask, bool, error) {
	var task model.AdminTask
	err := s.db.GetContext(ctx, &task,
		"SELECT * FROM admin_tasks WHERE task_type = ? AND task_id = ?", taskType, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AdminTask{}, false, nil
	}
	if err != nil {
		return model.AdminTask{}, false, fmt.Errorf("getting %s task %s: %w", taskType, taskID, err)
	}
	return task, true, nil
}

// CountTasks returns the number of stored tasks of the given type.
func (s *SQLiteStore) CountTasks(ctx context.Context, taskType model.TaskType) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM admin_tasks WHERE task_type = ?", taskType)
	if err != nil {
		return 0, fmt.Errorf("counting %s tasks: %w", taskType, err)
	}
	return n, nil
}

// TaskIDs returns the set of stored task ids of the given type.
func (s *SQLiteStore) TaskIDs(
	ctx context.Context,
	taskType model.TaskType,
) (map[string]bool, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		"SELECT task_id FROM admin_tasks WHERE task_type = ?", taskType)
	if err != nil {
		return nil, fmt.Errorf("listing %s task ids: %w", taskType, err)
	}

	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// UpdateTaskPriority sets the priority of the task with the given row id.
func (s *SQLiteStore) UpdateTaskPriority(ctx context.Context, id int64, priority int) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE admin_tasks SET priority = ? WHERE id = ?", priority, id)
	if err != nil {
		return fmt.Errorf("updating priority of task row %d: %w", id, err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("task row %d not found", id)
	}
	return nil
}

// DeleteTask removes a task and reports whether it existed.
func (s *SQLiteStore) DeleteTask(
	ctx context.Context,
	taskType model.TaskType,
	taskID string,
) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM admin_tasks WHERE task_type = ? AND task_id = ?",
		taskType, taskID)
	if err != nil {
		return false, fmt.Errorf("deleting %s task %s: %w", taskType, taskID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

func insertTask(ctx context.Context, db sqlx.ExtContext, task model.AdminTask) (bool, error) {
	if !task.TaskType.Valid() {
		return false, fmt.Errorf("inserting task %s: unknown task type %q", task.TaskID, task.TaskType)
	}
	if task.TaskID == "" {
		return false, fmt.Errorf("inserting %s task: empty task id", task.TaskType)
	}

	task.MadeOn = task.MadeOn.UTC()

	result, err := sqlx.NamedExecContext(ctx, db, insertTaskSQL, task)
	if err != nil {
		return false, fmt.Errorf("inserting %s task %s: %w", task.TaskType, task.TaskID, err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
