package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/theme"
)

// ConfigMode represents the current state of the settings view.
type ConfigMode int

const (
	ModeForm           ConfigMode = iota // Editing the settings
	ModeValidating                       // Testing the connection
	ModeValidateResult                   // Showing the outcome
)

// Saver checks and persists connection settings.
type Saver interface {
	// Validate connects with the given settings and returns the server
	// version.
	Validate(ctx context.Context, cfg model.MailmanConfig, password string) (string, error)

	// Save writes cfg to the configuration file. A non-empty password is
	// stored in the keyring.
	Save(cfg *model.AppConfig, password string) error
}

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// SavedMsg signals the settings were validated and written.
type SavedMsg struct {
	Config *model.AppConfig
}

// ValidateResultMsg carries the result of a connection attempt. Saved is
// set when the settings were written.
type ValidateResultMsg struct {
	Version string
	Err     error
	Saved   *model.AppConfig
}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	apiURL    string
	apiUser   string
	password  string
	timeout   string
	email     string
	superuser bool
}

// Model is the Bubble Tea model for the connection settings view.
type Model struct {
	mode    ConfigMode
	saver   Saver
	current *model.AppConfig
	form    *huh.Form
	fb      *formBindings

	validError error
	version    string
	spinner    spinner.Model

	width, height int
}

// New creates a settings view over cfg.
func New(s Saver, cfg *model.AppConfig, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		saver:   s,
		current: cfg,
		fb:      &formBindings{},
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Start fills the form from the current configuration. The password field
// starts empty; leaving it empty keeps the stored password.
func (m *Model) Start() tea.Cmd {
	m.mode = ModeForm
	m.validError = nil
	*m.fb = formBindings{
		apiURL:    m.current.Mailman.APIURL,
		apiUser:   m.current.Mailman.APIUser,
		timeout:   fmt.Sprint(m.current.Mailman.TimeoutSec),
		email:     m.current.Viewer.Email,
		superuser: m.current.Viewer.Superuser,
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ValidateResultMsg:
		m.version = msg.Version
		m.validError = msg.Err
		m.mode = ModeValidateResult
		if saved := msg.Saved; saved != nil {
			m.current = saved
			m.fb.password = ""
			return m, func() tea.Msg { return SavedMsg{Config: saved} }
		}
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if msg.String() == "esc" {
				m.mode = ModeForm
				return m, m.rebuildForm()
			}
			return m, nil
		case ModeValidateResult:
			return m.handleValidateResultKeys(msg)
		}
	}

	return m.updateForm(msg)
}

func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		if m.validError != nil {
			return m, m.validateAndSave()
		}
	case "e":
		m.mode = ModeForm
		return m, m.rebuildForm()
	case "enter", "esc":
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil || m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.mode = ModeValidating
		return m, tea.Batch(m.spinner.Tick, m.validateAndSave())
	case huh.StateAborted:
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	}
	return m, cmd
}

// rebuildForm starts a fresh form keeping the values typed so far.
func (m *Model) rebuildForm() tea.Cmd {
	m.form = m.buildForm()
	return m.form.Init()
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("REST API URL").
				Description("Mailman core REST root, without /3.0").
				Placeholder("http://localhost:8001").
				Value(&m.fb.apiURL).
				Validate(validateURL),
			huh.NewInput().
				Title("REST User").
				Value(&m.fb.apiUser).
				Validate(validateRequired("REST user")),
			huh.NewInput().
				Title("REST Password").
				Description("Leave empty to keep the stored password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password),
			huh.NewInput().
				Title("Timeout (seconds)").
				Value(&m.fb.timeout).
				Validate(validateSeconds),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Your Address").
				Description("Matched against list owner and moderator rosters").
				Value(&m.fb.email).
				Validate(validateRequired("Address")),
			huh.NewConfirm().
				Title("Site administrator?").
				Value(&m.fb.superuser),
		),
	).WithWidth(m.formWidth())
}

// edited returns the configuration described by the form.
func (m Model) edited() *model.AppConfig {
	cfg := *m.current
	cfg.Mailman.APIURL = strings.TrimRight(strings.TrimSpace(m.fb.apiURL), "/")
	cfg.Mailman.APIUser = strings.TrimSpace(m.fb.apiUser)
	if secs, err := strconv.Atoi(strings.TrimSpace(m.fb.timeout)); err == nil && secs > 0 {
		cfg.Mailman.TimeoutSec = secs
	}
	cfg.Viewer.Email = strings.TrimSpace(m.fb.email)
	cfg.Viewer.Superuser = m.fb.superuser
	return &cfg
}

// validateAndSave tests the connection with the edited settings and
// writes them when it succeeds.
func (m Model) validateAndSave() tea.Cmd {
	s := m.saver
	cfg := m.edited()
	password := m.fb.password
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Mailman.TimeoutSec)*time.Second)
		defer cancel()

		version, err := s.Validate(ctx, cfg.Mailman, password)
		if err != nil {
			return ValidateResultMsg{Err: err}
		}
		if err := s.Save(cfg, password); err != nil {
			return ValidateResultMsg{Version: version, Err: fmt.Errorf("connection OK but save failed: %w", err)}
		}
		return ValidateResultMsg{Version: version, Saved: cfg}
	}
}

// View renders the settings view.
func (m Model) View() string {
	switch m.mode {
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	}
	if m.form == nil {
		return ""
	}
	content := theme.SectionTitleStyle.Render("Connection Settings") + "\n" + m.form.View()
	return lipgloss.NewStyle().Padding(1, 2).Render(content)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			theme.DimmedStyle.Render("r retry | e edit | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Server: %s", m.version) + "\n" +
			"Settings saved. Restart listadmin to connect with them." + "\n\n" +
			theme.DimmedStyle.Render("enter/esc back")
	}

	return style.Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., http://localhost:8001)")
	}
	return nil
}

func validateSeconds(s string) error {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err != nil || n <= 0 {
		return fmt.Errorf("timeout must be a positive number of seconds")
	}
	return nil
}
