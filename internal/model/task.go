package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskType identifies what kind of pending work an AdminTask represents.
type TaskType string

const (
	TaskTypeSubscription TaskType = "subscription"
	TaskTypeModeration   TaskType = "moderation"
	TaskTypeManual       TaskType = "manual"
)

// Valid reports whether t is one of the known task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeSubscription, TaskTypeModeration, TaskTypeManual:
		return true
	}
	return false
}

// Task priority values. Only PriorityHigh is set from the dashboard; the
// medium and low levels are recognized by search.
const (
	PriorityUnset  = -2
	PriorityLow    = -1
	PriorityMedium = 0
	PriorityHigh   = 1
)

// AdminTask is a locally persisted pending task: a held message awaiting
// moderation, a subscription request awaiting approval, or a manual reminder.
type AdminTask struct {
	// ID is the local row id.
	ID int64 `json:"-" db:"id"`

	// TaskID is the remote held-message request id, the remote subscription
	// token, or a negative integer for manual tasks.
	TaskID string `json:"task_id" db:"task_id"`

	TaskType TaskType `json:"task_type" db:"task_type"`

	// MadeOn mirrors the remote hold/request date, or the creation time for
	// manual tasks.
	MadeOn time.Time `json:"made_on" db:"made_on"`

	// UserEmail is the requester or sender, or the creator of a manual task.
	UserEmail string `json:"user_email" db:"user_email"`

	// ListID is the dotted list id. Empty for manual tasks.
	ListID string `json:"list_id" db:"list_id"`

	Priority int `json:"priority" db:"priority"`

	// MsgSubject and MsgData are only set for moderation and manual tasks.
	MsgSubject string `json:"msg_subject,omitempty" db:"msg_subject"`
	MsgData    string `json:"msg_data,omitempty" db:"msg_data"`
}

// IsManual reports whether the task is a locally owned reminder.
func (t AdminTask) IsManual() bool {
	return t.TaskType == TaskTypeManual
}

// Title returns the one-line label shown for the task.
func (t AdminTask) Title() string {
	user := capitalize(localPart(t.UserEmail))
	list := capitalize(shortListName(t.ListID))

	switch t.TaskType {
	case TaskTypeSubscription:
		return fmt.Sprintf("Subscription Request from %s in %s", user, list)
	case TaskTypeModeration:
		return fmt.Sprintf("Message held for moderation from %s in %s", user, list)
	default:
		return t.MsgSubject
	}
}

// PriorityLabel returns the display label for the task priority.
func (t AdminTask) PriorityLabel() string {
	switch t.Priority {
	case PriorityHigh:
		return "High Priority"
	case PriorityMedium:
		return "Medium Priority"
	case PriorityLow:
		return "Low Priority"
	default:
		return "Priority Not Set"
	}
}

// ListIDFromFQDN converts a fully-qualified list name ("dev@example.com")
// into the dotted list id form ("dev.example.com").
func ListIDFromFQDN(fqdn string) string {
	return strings.Join(strings.Split(fqdn, "@"), ".")
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

func shortListName(listID string) string {
	if i := strings.IndexByte(listID, '.'); i >= 0 {
		return listID[:i]
	}
	return listID
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
