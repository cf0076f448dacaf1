// Package roleform asks for the list, role and address of a role removal
// and confirms it before anything is sent to the server.
package roleform

import (
	"fmt"
	"net/mail"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/theme"
)

// SubmitMsg is dispatched when a removal has been confirmed.
type SubmitMsg struct {
	ListID string
	Role   model.Role
	Email  string
}

// CancelMsg is dispatched when the form is aborted or not confirmed.
type CancelMsg struct{}

type formBindings struct {
	listID  string
	role    model.Role
	email   string
	confirm bool
}

// Model is the Bubble Tea model for the role removal form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new role removal form.
func New(width, height int) Model {
	return Model{fb: &formBindings{}, width: width, height: height}
}

// Start builds the form over the lists the viewer owns. It returns nil
// when there is nothing the viewer could change.
func (m *Model) Start(lists []model.MailingList, user model.User) tea.Cmd {
	var opts []huh.Option[string]
	for _, l := range lists {
		if user.Superuser || l.IsOwner(user.Email) {
			opts = append(opts, huh.NewOption(l.ListID, l.ListID))
		}
	}
	if len(opts) == 0 {
		m.form = nil
		return nil
	}

	*m.fb = formBindings{listID: opts[0].Value, role: model.RoleModerator}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("List").
				Options(opts...).
				Value(&m.fb.listID),
			huh.NewSelect[model.Role]().
				Title("Role").
				Options(
					huh.NewOption("Moderator", model.RoleModerator),
					huh.NewOption("Owner", model.RoleOwner),
					huh.NewOption("Subscriber", model.RoleSubscriber),
				).
				Value(&m.fb.role),
			huh.NewInput().
				Title("Address").
				Placeholder("user@example.com").
				Value(&m.fb.email).
				Validate(validateAddress),
		),
		huh.NewGroup(
			huh.NewConfirm().
				TitleFunc(func() string {
					return fmt.Sprintf("Remove %s as %s of %s?", m.fb.email, m.fb.role, m.fb.listID)
				}, m.fb).
				Affirmative("Remove").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(min(max(m.width-4, 40), 100))
	return m.form.Init()
}

// Active reports whether the form is being filled in.
func (m Model) Active() bool {
	return m.form != nil
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		if !m.fb.confirm {
			return m, func() tea.Msg { return CancelMsg{} }
		}
		submit := SubmitMsg{
			ListID: m.fb.listID,
			Role:   m.fb.role,
			Email:  strings.TrimSpace(m.fb.email),
		}
		return m, func() tea.Msg { return submit }
	case huh.StateAborted:
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	content := theme.SectionTitleStyle.Render("Remove Role") + "\n" + m.form.View()
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func validateAddress(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("address is required")
	}
	if _, err := mail.ParseAddress(s); err != nil {
		return fmt.Errorf("%q is not an email address", s)
	}
	return nil
}
