package tasklist

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/keys"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/theme"
)

// SelectedTaskMsg is sent when a user selects a task to view details.
type SelectedTaskMsg struct {
	Task model.AdminTask
}

// PriorityMsg asks for the priority of a task to be toggled.
type PriorityMsg struct {
	TaskType model.TaskType
	TaskID   string
	Priority int
}

// sortModes defines the available orderings cycled by Tab. The empty mode
// keeps the order the tasks were loaded in.
var sortModes = []string{
	"",
	"made_on",
	"priority",
	"list_id",
	"user_email",
	"task_type",
}

// Model is the main task list view component.
type Model struct {
	list        list.Model
	keys        *keys.KeyMap
	tasks       []model.AdminTask
	query       string
	sortIndex   int
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates a new task list model. now is used for the age column.
func New(k *keys.KeyMap, now func() time.Time, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: now}, width, height-2)
	l.Title = "Pending Tasks"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search tasks (moderation, subscription, priority high, an address)..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		keys:        k,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetTasks replaces the tasks shown by the list, keeping the current
// search and sort.
func (m *Model) SetTasks(tasks []model.AdminTask) tea.Cmd {
	m.tasks = tasks
	return m.refresh()
}

// Visible returns the tasks currently displayed, in display order.
func (m Model) Visible() []model.AdminTask {
	items := m.list.Items()
	tasks := make([]model.AdminTask, 0, len(items))
	for _, it := range items {
		if ti, ok := it.(TaskItem); ok {
			tasks = append(tasks, ti.Task)
		}
	}
	return tasks
}

// SortMode returns the name of the active ordering.
func (m Model) SortMode() string {
	if sortModes[m.sortIndex] == "" {
		return "default"
	}
	return sortModes[m.sortIndex]
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

func (m *Model) refresh() tea.Cmd {
	tasks := dashboard.SearchTasks(m.tasks, m.query)
	if by := sortModes[m.sortIndex]; by != "" {
		if sorted, err := dashboard.ReorderTasks(tasks, by); err == nil {
			tasks = sorted
		}
	}

	items := make([]list.Item, len(tasks))
	for i, task := range tasks {
		items[i] = TaskItem{Task: task}
	}
	return m.list.SetItems(items)
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleSearchKeys processes key input while in search mode.
func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.query = m.searchInput.Value()
		return m, m.refresh()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.query = ""
		return m, m.refresh()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// handleNormalKeys processes key input in normal (non-search) mode.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(TaskItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedTaskMsg{Task: item.Task}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.CycleSort):
		m.sortIndex = (m.sortIndex + 1) % len(sortModes)
		return m, m.refresh()

	case key.Matches(msg, m.keys.PriorityHigh):
		return m, m.priority(model.PriorityHigh)
	case key.Matches(msg, m.keys.PriorityMedium):
		return m, m.priority(model.PriorityMedium)
	case key.Matches(msg, m.keys.PriorityLow):
		return m, m.priority(model.PriorityLow)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) priority(level int) tea.Cmd {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return PriorityMsg{TaskType: item.Task.TaskType, TaskID: item.Task.TaskID, Priority: level}
	}
}

// View renders the task list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

// renderEmptyState shows guidance text when no tasks are available.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.query != "" {
		return style.Render("No matching tasks.\nPress / and esc to clear the search.")
	}

	return style.Render(
		"Nothing is waiting for you.\n\n" +
			"Press r to sync again or n to add a reminder.",
	)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
