package tasklist

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/theme"
)

// TaskItem wraps a model.AdminTask so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.AdminTask
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title() }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.Task.Title() }

// Description returns the requester and list of the task.
func (i TaskItem) Description() string {
	if i.Task.IsManual() {
		return i.Task.MsgData
	}
	return i.Task.UserEmail + " | " + i.Task.ListID
}

// ItemDelegate implements list.ItemDelegate for rendering task rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task line: type badge, priority marker, title and
// age.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	task := ti.Task

	typeBadge := theme.TaskTypeStyle(task.TaskType).Render(typeLabel(task.TaskType))
	priBadge := theme.PriorityStyle(task.Priority).Render(priorityLabel(task.Priority))

	age := ""
	if d.now != nil {
		age = theme.DimmedStyle.Render(dashboard.RelativeTime(task.MadeOn, d.now()))
	}

	line := fmt.Sprintf("%s %s %s  %s", typeBadge, priBadge, task.Title(), age)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func typeLabel(t model.TaskType) string {
	switch t {
	case model.TaskTypeModeration:
		return "MOD"
	case model.TaskTypeSubscription:
		return "SUB"
	default:
		return "TODO"
	}
}

// priorityLabel returns a short marker for the given priority level.
func priorityLabel(p int) string {
	switch p {
	case model.PriorityHigh:
		return "!!!"
	case model.PriorityMedium:
		return "!! "
	case model.PriorityLow:
		return "!  "
	default:
		return "   "
	}
}
