package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/keys"
	"github.com/nhle/listadmin/internal/mailman"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DecisionMsg asks the parent to apply a decision to the current task.
// Discarding a manual task deletes it.
type DecisionMsg struct {
	Task     model.AdminTask
	Decision model.Decision
}

// PriorityMsg asks the parent to toggle the priority of the current task.
type PriorityMsg struct {
	TaskType model.TaskType
	TaskID   string
	Priority int
}

// Model is the task detail view component.
type Model struct {
	task     *model.AdminTask
	viewport viewport.Model
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, now func() time.Time, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		now:      now,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// allowed reports whether decision d applies to the current task.
func (m Model) allowed(d model.Decision) bool {
	if m.task == nil {
		return false
	}
	switch m.task.TaskType {
	case model.TaskTypeModeration:
		return true
	case model.TaskTypeSubscription:
		return d != model.DecisionDefer
	default:
		return d == model.DecisionDiscard
	}
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}
		case key.Matches(msg, m.keys.Accept):
			return m, m.decide(model.DecisionAccept)
		case key.Matches(msg, m.keys.Reject):
			return m, m.decide(model.DecisionReject)
		case key.Matches(msg, m.keys.Discard):
			return m, m.decide(model.DecisionDiscard)
		case key.Matches(msg, m.keys.Defer):
			return m, m.decide(model.DecisionDefer)
		case key.Matches(msg, m.keys.PriorityHigh):
			return m, m.priority(model.PriorityHigh)
		case key.Matches(msg, m.keys.PriorityMedium):
			return m, m.priority(model.PriorityMedium)
		case key.Matches(msg, m.keys.PriorityLow):
			return m, m.priority(model.PriorityLow)
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) decide(d model.Decision) tea.Cmd {
	if !m.allowed(d) {
		return nil
	}
	task := *m.task
	return func() tea.Msg {
		return DecisionMsg{Task: task, Decision: d}
	}
}

func (m Model) priority(level int) tea.Cmd {
	if m.task == nil {
		return nil
	}
	taskType, id := m.task.TaskType, m.task.TaskID
	return func() tea.Msg {
		return PriorityMsg{TaskType: taskType, TaskID: id, Priority: level}
	}
}

// View renders the detail view.
func (m Model) View() string {
	if m.task == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No task selected")
	}

	return m.viewport.View()
}

// Hints returns the status bar hints for the current task.
func (m Model) Hints() string {
	if m.task == nil {
		return "esc: back"
	}
	switch m.task.TaskType {
	case model.TaskTypeModeration:
		return "a: accept | x: reject | d: discard | f: defer | 1-3: priority | esc: back"
	case model.TaskTypeSubscription:
		return "a: accept | x: reject | d: discard | 1-3: priority | esc: back"
	default:
		return "d: done | 1-3: priority | esc: back"
	}
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	task := m.task
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(task.Title()))

	typeBadge := theme.TaskTypeStyle(task.TaskType).Render(strings.ToUpper(string(task.TaskType)))
	priBadge := theme.PriorityStyle(task.Priority).Render(task.PriorityLabel())
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, typeBadge, "  ", priBadge))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-10s", label+":")),
			valStyle.Render(value),
		))
	}

	switch task.TaskType {
	case model.TaskTypeSubscription:
		meta("Requester", task.UserEmail)
	case model.TaskTypeModeration:
		meta("Sender", task.UserEmail)
	default:
		meta("Creator", task.UserEmail)
	}
	meta("List", task.ListID)
	meta("Created", task.MadeOn.Local().Format("2006-01-02 15:04"))
	if m.now != nil {
		meta("Age", dashboard.RelativeTime(task.MadeOn, m.now()))
	}

	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(0, min(m.width-4, 80))))
	sections = append(sections, "", separator, "")

	switch task.TaskType {
	case model.TaskTypeModeration:
		sections = append(sections, m.renderMessage()...)
	case model.TaskTypeManual:
		sections = append(sections, theme.SectionTitleStyle.Render("Description"))
		sections = append(sections, orNone(task.MsgData, "No description"))
	default:
		sections = append(sections, metaStyle.Render(
			"Accepting subscribes "+task.UserEmail+" to "+task.ListID+"."))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderMessage shows the held message: its headers, text body and the
// attachments it carries.
func (m Model) renderMessage() []string {
	task := m.task
	header := theme.SectionTitleStyle.Render(orNone(task.MsgSubject, "(no subject)"))

	msg, err := mailman.ParseMessage(task.MsgData)
	if err != nil {
		return []string{header, theme.DimmedStyle.Render("The message could not be parsed: " + err.Error())}
	}

	sections := []string{header}
	if msg.From != "" {
		sections = append(sections, theme.DimmedStyle.Render("From: "+msg.Sender()))
	}
	if !msg.Date.IsZero() {
		sections = append(sections, theme.DimmedStyle.Render("Date: "+msg.Date.Local().Format(time.RFC1123)))
	}
	sections = append(sections, "")

	body := strings.TrimSpace(msg.TextBody)
	if body == "" && msg.HTMLBody != "" {
		body = "(HTML only message)"
	}
	sections = append(sections, orNone(body, "Empty message"))

	if len(msg.Attachments) > 0 {
		sections = append(sections, "", theme.SectionTitleStyle.Render(
			fmt.Sprintf("Attachments (%d)", len(msg.Attachments))))
		for _, a := range msg.Attachments {
			sections = append(sections, fmt.Sprintf("• %s  %s  %s",
				a.Filename,
				theme.DimmedStyle.Render(a.MIMEType),
				theme.DimmedStyle.Render(humanize.Bytes(uint64(a.Size))),
			))
		}
	}
	return sections
}

func orNone(s, placeholder string) string {
	if s != "" {
		return s
	}
	return lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Italic(true).
		Render(placeholder)
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(task model.AdminTask) {
	m.task = &task
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Task returns the displayed task, if any.
func (m Model) Task() (model.AdminTask, bool) {
	if m.task == nil {
		return model.AdminTask{}, false
	}
	return *m.task, true
}

// Clear drops the displayed task.
func (m *Model) Clear() {
	m.task = nil
	m.viewport.SetContent("")
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
