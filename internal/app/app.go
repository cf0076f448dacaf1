package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/keys"
	"github.com/nhle/listadmin/internal/model"
	appsync "github.com/nhle/listadmin/internal/sync"
	"github.com/nhle/listadmin/internal/ui"
	"github.com/nhle/listadmin/internal/ui/activity"
	"github.com/nhle/listadmin/internal/ui/command"
	configview "github.com/nhle/listadmin/internal/ui/config"
	"github.com/nhle/listadmin/internal/ui/detail"
	helpview "github.com/nhle/listadmin/internal/ui/help"
	"github.com/nhle/listadmin/internal/ui/roleform"
	"github.com/nhle/listadmin/internal/ui/taskform"
	"github.com/nhle/listadmin/internal/ui/tasklist"
)

// Dashboard is the set of dashboard operations the console calls.
type Dashboard interface {
	Load(ctx context.Context, user model.User) (dashboard.View, error)
	SyncStatus() appsync.Status
	CreateManualTask(ctx context.Context, user model.User, subject, description string) (model.AdminTask, error)
	DiscardManualTask(ctx context.Context, user model.User, taskID string) error
	SetTaskPriority(ctx context.Context, taskType model.TaskType, taskID string, priority int) (model.AdminTask, error)
	HandleSubscriptionTask(ctx context.Context, user model.User, listID, token string, d model.Decision) error
	HandleModerationTask(ctx context.Context, user model.User, listID, requestID string, d model.Decision) error
	AddRole(ctx context.Context, user model.User, listID string, role model.Role, email string) error
	RemoveRole(ctx context.Context, user model.User, listID string, role model.Role, email string) error
	HeldMessage(ctx context.Context, user model.User, listID, requestID string) (model.HeldMessage, error)
	Search(ctx context.Context, user model.User, query string) (dashboard.SearchResult, error)
}

// Options configures the console.
type Options struct {
	User model.User

	// StatsPath is the default target of the "stats" command.
	StatsPath string

	// Timeout bounds each dashboard call. Defaults to one minute.
	Timeout time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	// Config and Settings enable the connection settings view.
	Config   *model.AppConfig
	Settings configview.Saver
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewActivity
	ViewHelp
	ViewCommand
	ViewTaskCreate
	ViewRoleRemove
	ViewConfig
)

// Model is the root Bubble Tea model that manages view routing, layout and
// the calls into the dashboard service.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	service      Dashboard
	user         model.User
	statsPath    string
	timeout      time.Duration
	now          func() time.Time
	keys         *keys.KeyMap
	taskList     tasklist.Model
	detail       detail.Model
	activityView activity.Model
	helpView     helpview.Model
	commandView  command.Model
	taskForm     taskform.Model
	roleForm     roleform.Model
	configView   configview.Model
	hasSettings  bool
	view         dashboard.View
	listQuery    string
	loading      bool
	loaded       bool
	ready        bool
	flash        string
	flashErr     error
}

// New creates a new root application model.
func New(svc Dashboard, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.StatsPath == "" {
		opts.StatsPath = "listadmin-stats.json"
	}
	k := keys.DefaultKeyMap()
	cfg := opts.Config
	if cfg == nil {
		cfg = &model.AppConfig{}
	}

	return Model{
		currentView:  ViewList,
		service:      svc,
		user:         opts.User,
		statsPath:    opts.StatsPath,
		timeout:      opts.Timeout,
		now:          opts.Now,
		keys:         k,
		taskList:     tasklist.New(k, opts.Now, 80, 24),
		detail:       detail.New(k, opts.Now, 80, 24),
		activityView: activity.New(opts.Now, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		commandView:  command.New(80, 24),
		taskForm:     taskform.New(80, 24),
		roleForm:     roleform.New(80, 24),
		configView:   configview.New(opts.Settings, cfg, 80, 24),
		hasSettings:  opts.Settings != nil && opts.Config != nil,
		loading:      true,
	}
}

// Init loads the dashboard, which runs the first sync pass.
func (m Model) Init() tea.Cmd {
	return m.loadDashboard()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.taskList.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.activityView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.commandView.SetSize(w, h)
		m.taskForm.SetSize(w, h)
		m.roleForm.SetSize(w, h)
		m.configView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case viewLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.flashErr = msg.err
			return m, nil
		}
		m.loaded = true
		m.flashErr = nil
		m.view = msg.view
		m.showActivity()
		m.refreshDetail()
		if n := len(msg.view.Sync.NewModeration) + len(msg.view.Sync.NewSubscription); n > 0 && m.flash == "" {
			m.flash = fmt.Sprintf("%s new task(s)", humanize.Comma(int64(n)))
		}
		return m, m.taskList.SetTasks(msg.view.Tasks)

	case actionDoneMsg:
		m.flash, m.flashErr = msg.info, msg.err
		if msg.reload {
			m.loading = true
			return m, m.loadDashboard()
		}
		return m, nil

	case priorityChangedMsg:
		if msg.err != nil {
			m.flashErr = msg.err
			return m, nil
		}
		m.flash, m.flashErr = msg.task.Title()+": "+msg.task.PriorityLabel(), nil
		m.replaceTask(msg.task)
		return m, m.taskList.SetTasks(m.view.Tasks)

	case tasklist.SelectedTaskMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetTask(msg.Task)
		if msg.Task.TaskType == model.TaskTypeModeration {
			return m, m.refreshHeld(msg.Task)
		}
		return m, nil

	case heldRefreshedMsg:
		return m.applyHeld(msg)

	case searchDoneMsg:
		if msg.err != nil {
			m.flashErr = msg.err
			return m, nil
		}
		if msg.result.Query == m.listQuery {
			m.activityView.SetSearch(msg.result)
		}
		return m, nil

	case tasklist.PriorityMsg:
		return m, m.togglePriority(msg.TaskType, msg.TaskID, msg.Priority)

	case detail.PriorityMsg:
		return m, m.togglePriority(msg.TaskType, msg.TaskID, msg.Priority)

	case detail.DecisionMsg:
		m.currentView = ViewList
		m.detail.Clear()
		return m, m.decide(msg.Task, msg.Decision)

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case taskform.SubmitMsg:
		m.currentView = ViewList
		return m, m.createReminder(msg.Subject, msg.Description)

	case taskform.CancelMsg:
		m.currentView = ViewList
		return m, nil

	case roleform.SubmitMsg:
		m.currentView = ViewActivity
		return m, m.removeRole(msg.ListID, msg.Role, msg.Email)

	case roleform.CancelMsg:
		m.currentView = ViewActivity
		return m, nil

	case configview.SavedMsg:
		m.user = msg.Config.User()
		m.flash, m.flashErr = "Settings saved", nil
		m.loading = true
		return m, m.loadDashboard()

	case configview.ConfigDoneMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(msg)

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
		if m.currentView == ViewCommand && msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil
		}
		if m.currentView == ViewActivity && key.Matches(msg, m.keys.Back) {
			m.currentView = ViewList
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work outside text inputs. The bool
// reports whether the key was consumed.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}
	if m.capturesText() {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit) && m.currentView == ViewList:
		return tea.Quit, true

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Refresh) && m.currentView == ViewList:
		m.loading = true
		m.flash, m.flashErr = "", nil
		return m.loadDashboard(), true

	case key.Matches(msg, m.keys.NewTask) && (m.currentView == ViewList || m.currentView == ViewActivity):
		m.previousView = m.currentView
		m.currentView = ViewTaskCreate
		return m.taskForm.Start(), true

	case key.Matches(msg, m.keys.Settings) && m.currentView == ViewList && m.hasSettings:
		m.previousView = m.currentView
		m.currentView = ViewConfig
		return m.configView.Start(), true

	case key.Matches(msg, m.keys.Activity) && m.currentView == ViewList:
		m.previousView = m.currentView
		m.currentView = ViewActivity
		return nil, true

	case msg.String() == "R" && m.currentView == ViewActivity:
		return m.startRoleRemoval(), true

	case key.Matches(msg, m.keys.Back) && m.currentView == ViewHelp:
		m.currentView = m.previousView
		return nil, true
	}
	return nil, false
}

// capturesText reports whether the active view owns every key press.
func (m Model) capturesText() bool {
	switch m.currentView {
	case ViewCommand, ViewTaskCreate, ViewRoleRemove, ViewConfig:
		return true
	case ViewList:
		return m.taskList.Searching()
	}
	return false
}

func (m *Model) startRoleRemoval() tea.Cmd {
	cmd := m.roleForm.Start(m.view.Lists, m.user)
	if !m.roleForm.Active() {
		m.flashErr = fmt.Errorf("only list owners can remove roles: %w", dashboard.ErrForbidden)
		return nil
	}
	m.previousView = m.currentView
	m.currentView = ViewRoleRemove
	return cmd
}

// executeCommand runs a command typed into the palette.
func (m Model) executeCommand(c command.CommandMsg) (tea.Model, tea.Cmd) {
	switch c.Name {
	case "sync", "refresh":
		m.loading = true
		return m, m.loadDashboard()
	case "stats":
		path := m.statsPath
		if len(c.Args) > 0 {
			path = c.Args[0]
		}
		return m, m.exportStats(path)
	case "remove":
		if len(c.Args) != 3 {
			m.flashErr = fmt.Errorf("usage: remove <list> <owner|moderator|subscriber> <email>")
			return m, nil
		}
		return m, m.removeRole(c.Args[0], model.Role(strings.ToLower(c.Args[1])), c.Args[2])
	case "add":
		if len(c.Args) != 3 {
			m.flashErr = fmt.Errorf("usage: add <list> <owner|moderator|subscriber> <email>")
			return m, nil
		}
		return m, m.addRole(c.Args[0], model.Role(strings.ToLower(c.Args[1])), c.Args[2])
	case "new":
		m.currentView = ViewTaskCreate
		return m, m.taskForm.Start()
	case "activity":
		m.listQuery = strings.Join(c.Args, " ")
		m.showActivity()
		m.currentView = ViewActivity
		if m.listQuery == "" {
			m.activityView.SetSearch(dashboard.SearchResult{})
			return m, nil
		}
		return m, m.search(m.listQuery)
	case "quit", "q":
		return m, tea.Quit
	}
	m.flashErr = fmt.Errorf("unknown command %q", c.Name)
	return m, nil
}

// showActivity refreshes the activity view, narrowing its list section to
// the current list query.
func (m *Model) showActivity() {
	m.activityView.SetData(m.view.Events, dashboard.SearchLists(m.view.Lists, m.listQuery), m.view.Graph)
}

// applyHeld copies the server's version of a held message into the task
// on screen. A message that is no longer held was handled elsewhere, so the
// dashboard is reloaded.
func (m Model) applyHeld(msg heldRefreshedMsg) (tea.Model, tea.Cmd) {
	cur, ok := m.detail.Task()
	showing := ok && cur.ID == msg.task.ID

	switch {
	case errors.Is(msg.err, dashboard.ErrTaskNotFound):
		m.flash, m.flashErr = fmt.Sprintf("Message from %s was already handled", msg.task.UserEmail), nil
		if showing {
			m.detail.Clear()
			if m.currentView == ViewDetail {
				m.currentView = ViewList
			}
		}
		m.loading = true
		return m, m.loadDashboard()
	case msg.err != nil:
		m.flashErr = msg.err
		return m, nil
	case !showing:
		return m, nil
	}

	if msg.held.Msg != "" {
		cur.MsgData = msg.held.Msg
	}
	if msg.held.Subject != "" {
		cur.MsgSubject = msg.held.Subject
	}
	m.replaceTask(cur)
	return m, m.taskList.SetTasks(m.view.Tasks)
}

// replaceTask swaps the stored copy of task for its updated version.
func (m *Model) replaceTask(task model.AdminTask) {
	for i := range m.view.Tasks {
		if m.view.Tasks[i].ID == task.ID {
			m.view.Tasks[i] = task
		}
	}
	if cur, ok := m.detail.Task(); ok && cur.ID == task.ID {
		m.detail.SetTask(task)
	}
}

// refreshDetail re-reads the detail task from a fresh load, leaving the
// detail view when the task is gone.
func (m *Model) refreshDetail() {
	cur, ok := m.detail.Task()
	if !ok {
		return
	}
	for _, t := range m.view.Tasks {
		if t.ID == cur.ID {
			m.detail.SetTask(t)
			return
		}
	}
	m.detail.Clear()
	if m.currentView == ViewDetail {
		m.currentView = ViewList
	}
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewActivity:
		m.activityView, cmd = m.activityView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewTaskCreate:
		m.taskForm, cmd = m.taskForm.Update(msg)
	case ViewRoleRemove:
		m.roleForm, cmd = m.roleForm.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	}
	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "List Admin"
	if m.user.Email != "" {
		title += " · " + m.user.Email
	}
	if n := len(m.view.Tasks); n > 0 {
		title = fmt.Sprintf("%s [%d pending]", title, n)
	}

	header := m.layout.RenderHeader(title, m.syncStatus())
	flash := m.layout.RenderFlash(m.flash, m.flashErr)
	statusBar := m.layout.RenderStatusBar(m.keyHints())
	return m.layout.RenderWithFrame(header, m.renderContent(), flash, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.taskList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewActivity:
		return m.activityView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewTaskCreate:
		return m.taskForm.View()
	case ViewRoleRemove:
		return m.roleForm.View()
	case ViewConfig:
		return m.configView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the last sync pass.
func (m Model) syncStatus() string {
	if m.loading {
		return "syncing..."
	}

	st := m.service.SyncStatus()
	switch st.State {
	case appsync.StateRunning:
		return "syncing..."
	case appsync.StateError:
		return "⚠ sync failed"
	}
	if st.LastSync.IsZero() {
		return "not synced"
	}
	return "synced " + dashboard.RelativeTime(st.LastSync, m.now())
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewDetail:
		return m.detail.Hints()
	case ViewActivity:
		return "j/k: scroll | R: remove role | n: new reminder | esc: back"
	case ViewTaskCreate, ViewRoleRemove, ViewConfig:
		return "enter: next | esc: cancel"
	case ViewCommand:
		return "enter: run | esc: cancel"
	case ViewHelp:
		return "?: close help"
	}
	return fmt.Sprintf(
		"enter: open | 1-3: priority | tab: sort (%s) | /: search | n: new | s: activity | r: sync | c: settings | ?: help | q: quit",
		m.taskList.SortMode(),
	)
}
