package model

import "time"

// DateLayout is the format of CalendarEntry.OnDate and graph keys.
const DateLayout = "2006-01-02"

// CalendarEntry counts the new tasks of one type observed for a list on a
// given day. Entries are created on the first task of the day and
// incremented afterwards; they are never deleted.
type CalendarEntry struct {
	OnDate    string   `json:"on_date" db:"on_date"`
	ListID    string   `json:"list_id" db:"list_id"`
	LogType   TaskType `json:"log_type" db:"log_type"`
	LogNumber int      `json:"log_number" db:"log_number"`
}

// CalendarDate returns the UTC calendar day of t. Mailman stamps holds and
// requests in naive UTC, so a task is counted on the day of its stamp.
func CalendarDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
