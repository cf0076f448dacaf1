package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/listadmin/internal/keys"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay: the key bindings followed by a legend of
// task types and the commands understood by the palette.
func (m Model) View() string {
	title := theme.SectionTitleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	legend := lipgloss.JoinVertical(lipgloss.Left,
		theme.SectionTitleStyle.MarginTop(1).Render("Task Types"),
		theme.TaskTypeStyle(model.TaskTypeModeration).Render("MOD")+" message held for moderation",
		theme.TaskTypeStyle(model.TaskTypeSubscription).Render("SUB")+" subscription request",
		theme.TaskTypeStyle(model.TaskTypeManual).Render("TODO")+" reminder you created",
	)

	commands := lipgloss.JoinVertical(lipgloss.Left,
		theme.SectionTitleStyle.MarginTop(1).Render("Commands"),
		theme.DimmedStyle.Render("sync                              re-run the task sync"),
		theme.DimmedStyle.Render("stats [file]                      export the statistics graph"),
		theme.DimmedStyle.Render("add <list> <role> <email>         grant a role on a list"),
		theme.DimmedStyle.Render("remove <list> <role> <email>      revoke a role on a list"),
		theme.DimmedStyle.Render("activity [query]                  show activity and search for [query]"),
		theme.DimmedStyle.Render("quit                              leave the dashboard"),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, legend, commands)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
