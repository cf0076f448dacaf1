package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/listadmin/internal/model"
)

// IncrementCalendar creates the entry for (onDate, listID, logType) with a
// count of one, or adds one to the existing count.
func (s *SQLiteStore) IncrementCalendar(
	ctx context.Context,
	onDate, listID string,
	logType model.TaskType,
) error {
	return incrementCalendar(ctx, s.db, onDate, listID, logType)
}

// GetCalendar retrieves statistics entries matching the filter, ordered by
// date ascending.
func (s *SQLiteStore) GetCalendar(
	ctx context.Context,
	filter CalendarFilter,
) ([]model.CalendarEntry, error) {
	var conditions []string
	var args []interface{}

	if filter.From != "" {
		conditions = append(conditions, "on_date >= ?")
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, "on_date <= ?")
		args = append(args, filter.To)
	}
	if len(filter.ListIDs) > 0 {
		conditions = append(conditions, "list_id IN (?)")
		args = append(args, filter.ListIDs)
	}

	query := "SELECT on_date, list_id, log_type, log_number FROM task_calendar"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY on_date, list_id, log_type"

	if len(filter.ListIDs) > 0 {
		var err error
		query, args, err = s.inClause(query, args...)
		if err != nil {
			return nil, err
		}
	}

	var entries []model.CalendarEntry
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("querying task calendar: %w", err)
	}
	return entries, nil
}

func incrementCalendar(
	ctx context.Context,
	db sqlx.ExecerContext,
	onDate, listID string,
	logType model.TaskType,
) error {
	if logType != model.TaskTypeSubscription && logType != model.TaskTypeModeration {
		return fmt.Errorf("calendar log type %q is not tracked", logType)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO task_calendar (on_date, list_id, log_type, log_number)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(on_date, list_id, log_type)
		DO UPDATE SET log_number = log_number + 1`,
		onDate, listID, string(logType),
	)
	if err != nil {
		return fmt.Errorf("incrementing %s log for %s on %s: %w", logType, listID, onDate, err)
	}
	return nil
}
