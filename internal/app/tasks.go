package app

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/mailman"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/stats"
)

// viewLoadedMsg carries the result of a dashboard load.
type viewLoadedMsg struct {
	view dashboard.View
	err  error
}

// actionDoneMsg is sent after a mutation. A successful action reloads the
// dashboard so the task list reflects the server.
type actionDoneMsg struct {
	info   string
	err    error
	reload bool
}

// priorityChangedMsg carries the task after its priority was toggled.
type priorityChangedMsg struct {
	task model.AdminTask
	err  error
}

// heldRefreshedMsg carries the server's current copy of a held message.
type heldRefreshedMsg struct {
	task model.AdminTask
	held model.HeldMessage
	err  error
}

// searchDoneMsg carries the result of a dashboard-wide search.
type searchDoneMsg struct {
	result dashboard.SearchResult
	err    error
}

// loadDashboard runs a sync pass and reloads everything the viewer sees.
func (m *Model) loadDashboard() tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		view, err := svc.Load(ctx, user)
		return viewLoadedMsg{view: view, err: describe(err)}
	}
}

// decide applies a decision to a task. Discarding a manual task deletes
// it; everything else goes to the server.
func (m *Model) decide(task model.AdminTask, d model.Decision) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		var err error
		switch task.TaskType {
		case model.TaskTypeManual:
			err = svc.DiscardManualTask(ctx, user, task.TaskID)
		case model.TaskTypeSubscription:
			err = svc.HandleSubscriptionTask(ctx, user, task.ListID, task.TaskID, d)
		default:
			err = svc.HandleModerationTask(ctx, user, task.ListID, task.TaskID, d)
		}
		if err != nil {
			return actionDoneMsg{err: describe(err)}
		}
		return actionDoneMsg{info: decisionInfo(task, d), reload: true}
	}
}

func decisionInfo(task model.AdminTask, d model.Decision) string {
	switch {
	case task.IsManual():
		return fmt.Sprintf("Reminder %q done", task.MsgSubject)
	case task.TaskType == model.TaskTypeSubscription:
		return fmt.Sprintf("Subscription of %s: %s", task.UserEmail, d)
	case d == model.DecisionDefer:
		return fmt.Sprintf("Message from %s stays held", task.UserEmail)
	default:
		return fmt.Sprintf("Message from %s: %s", task.UserEmail, d)
	}
}

// togglePriority flips the priority of a task.
func (m *Model) togglePriority(taskType model.TaskType, taskID string, level int) tea.Cmd {
	svc, timeout := m.service, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		task, err := svc.SetTaskPriority(ctx, taskType, taskID, level)
		return priorityChangedMsg{task: task, err: describe(err)}
	}
}

// refreshHeld fetches the latest version of a held message.
func (m *Model) refreshHeld(task model.AdminTask) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		held, err := svc.HeldMessage(ctx, user, task.ListID, task.TaskID)
		return heldRefreshedMsg{task: task, held: held, err: describe(err)}
	}
}

// search looks query up across lists, domains and subscribers.
func (m *Model) search(query string) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		result, err := svc.Search(ctx, user, query)
		return searchDoneMsg{result: result, err: describe(err)}
	}
}

// createReminder stores a new manual task for the viewer.
func (m *Model) createReminder(subject, description string) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		task, err := svc.CreateManualTask(ctx, user, subject, description)
		if err != nil {
			return actionDoneMsg{err: describe(err)}
		}
		return actionDoneMsg{info: fmt.Sprintf("Reminder %q added", task.MsgSubject), reload: true}
	}
}

// addRole grants a role on a list.
func (m *Model) addRole(listID string, role model.Role, email string) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := svc.AddRole(ctx, user, listID, role, email); err != nil {
			return actionDoneMsg{err: describe(err)}
		}
		return actionDoneMsg{
			info:   fmt.Sprintf("%s is now %s of %s", email, role, listID),
			reload: true,
		}
	}
}

// removeRole revokes a role on a list.
func (m *Model) removeRole(listID string, role model.Role, email string) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := svc.RemoveRole(ctx, user, listID, role, email); err != nil {
			return actionDoneMsg{err: describe(err)}
		}
		return actionDoneMsg{
			info:   fmt.Sprintf("%s is no longer %s of %s", email, role, listID),
			reload: true,
		}
	}
}

// exportStats writes the graph currently on screen to path.
func (m *Model) exportStats(path string) tea.Cmd {
	graph := m.view.Graph
	return func() tea.Msg {
		if err := stats.WriteFile(path, graph); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{info: "Statistics written to " + path}
	}
}

// describe turns the errors a viewer can act on into readable messages and
// passes everything else through.
func describe(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, dashboard.ErrNoControlAccess):
		return errors.New("you do not own or moderate any list on this server")
	case mailman.IsAuthError(err):
		return fmt.Errorf("mailman rejected the REST credentials: %w", err)
	case mailman.IsUnreachable(err):
		return fmt.Errorf("mailman is unreachable: %w", err)
	default:
		return err
	}
}
