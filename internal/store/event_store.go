package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/listadmin/internal/model"
)

// CreateEvent appends an event to the log. If the event has no ID, a new
// UUID is generated; a zero MadeOn is set to the current time.
func (s *SQLiteStore) CreateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.MadeOn.IsZero() {
		e.MadeOn = time.Now()
	}
	e.MadeOn = e.MadeOn.UTC()

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO events (id, user_email, event_op, event, list_id, made_on)
		VALUES (:id, :user_email, :event_op, :event, :list_id, :made_on)`, e)
	if err != nil {
		return model.Event{}, fmt.Errorf("creating event: %w", err)
	}
	return e, nil
}

// GetEvents retrieves events, newest first. An event's kind is the task
// type prefix of its tag.
func (s *SQLiteStore) GetEvents(
	ctx context.Context,
	filter EventFilter,
) ([]model.Event, error) {
	var conditions []string
	var args []interface{}

	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			kinds = append(kinds, "event LIKE ?")
			args = append(args, string(k)+"-%")
		}
		conditions = append(conditions, "("+strings.Join(kinds, " OR ")+")")
	}

	query := "SELECT * FROM events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY made_on DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var events []model.Event
	if err := s.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	return events, nil
}
