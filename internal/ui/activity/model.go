// Package activity shows what happened recently: the decision feed, the
// daily task graph and the lists the viewer administers.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/stats"
	"github.com/nhle/listadmin/internal/theme"
)

var sparks = []rune("▁▂▃▄▅▆▇█")

// Model is the activity and statistics view.
type Model struct {
	viewport viewport.Model
	events   []model.Event
	lists    []model.MailingList
	graph    stats.Graph
	search   dashboard.SearchResult
	now      func() time.Time
	width    int
	height   int
}

// New creates the activity view.
func New(now func() time.Time, width, height int) Model {
	return Model{
		viewport: viewport.New(width, height),
		now:      now,
		width:    width,
		height:   height,
	}
}

// SetData replaces the content of the view.
func (m *Model) SetData(events []model.Event, lists []model.MailingList, graph stats.Graph) {
	m.events = events
	m.lists = lists
	m.graph = graph
	m.viewport.SetContent(m.renderContent())
}

// SetSearch shows the result of a dashboard-wide search above the feed. A
// result with an empty query hides the search section.
func (m *Model) SetSearch(result dashboard.SearchResult) {
	m.search = result
	m.viewport.SetContent(m.renderContent())
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update scrolls the view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the activity view.
func (m Model) View() string {
	return m.viewport.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.viewport.SetContent(m.renderContent())
}

func (m Model) renderContent() string {
	sections := m.renderSearch()
	sections = append(sections,
		theme.SectionTitleStyle.Render(fmt.Sprintf("New tasks, last %d days", stats.WindowDays)),
		renderSeries("Subscriptions", m.graph.Subscriptions, theme.TaskTypeStyle(model.TaskTypeSubscription)),
		renderSeries("Moderations  ", m.graph.Moderations, theme.TaskTypeStyle(model.TaskTypeModeration)),
		"",
		theme.SectionTitleStyle.Render("Recent Activity"),
	)
	sections = append(sections, m.renderFeed()...)

	sections = append(sections, "", theme.SectionTitleStyle.Render(
		fmt.Sprintf("Your Lists (%d)", len(m.lists))))
	for _, l := range m.lists {
		name := l.DisplayName
		if name == "" {
			name = l.ListID
		}
		sections = append(sections, fmt.Sprintf("%s %s",
			lipgloss.NewStyle().Bold(true).Render(name),
			theme.DimmedStyle.Render(fmt.Sprintf("%s · owners: %s · moderators: %s",
				l.FQDNListName, joinOrNone(l.Owners), joinOrNone(l.Moderators))),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderFeed() []string {
	if len(m.events) == 0 {
		return []string{theme.DimmedStyle.Render("Nothing has happened yet.")}
	}

	lines := make([]string, 0, len(m.events))
	for _, e := range m.events {
		when := e.MadeOn.Local().Format("Jan 02 15:04")
		if m.now != nil {
			if rel := dashboard.RelativeTime(e.MadeOn, m.now()); rel != "" {
				when = rel
			}
		}
		lines = append(lines, fmt.Sprintf("%s  %s",
			theme.EventStyle(e).Render(e.Describe()),
			theme.DimmedStyle.Render(when),
		))
	}
	return lines
}

func (m Model) renderSearch() []string {
	if m.search.Query == "" {
		return nil
	}

	lines := []string{
		theme.SectionTitleStyle.Render(fmt.Sprintf("Search: %s", m.search.Query)),
		lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Domains (%d)", len(m.search.Domains))),
	}
	for _, d := range m.search.Domains {
		lines = append(lines, fmt.Sprintf("  %s %s", d.MailHost, theme.DimmedStyle.Render(d.BaseURL)))
	}
	lines = append(lines, lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("People (%d)", len(m.search.People))))
	for _, p := range m.search.People {
		lines = append(lines, fmt.Sprintf("  %s %s", p.Email, theme.DimmedStyle.Render("· "+p.ListID)))
	}
	return append(lines, "")
}

// renderSeries draws one series as a sparkline followed by its total.
func renderSeries(label string, s stats.Series, style lipgloss.Style) string {
	return fmt.Sprintf("%s %s %s",
		label,
		style.Render(Sparkline(s)),
		theme.DimmedStyle.Render(humanize.Comma(int64(s.Total()))+" total"),
	)
}

// Sparkline renders counts as one block character per day, scaled to the
// largest count. Days with no tasks render as a space.
func Sparkline(s stats.Series) string {
	peak := 0
	for _, d := range s {
		peak = max(peak, d.Count)
	}

	var b strings.Builder
	for _, d := range s {
		if d.Count <= 0 {
			b.WriteRune(' ')
			continue
		}
		i := (d.Count*len(sparks) - 1) / peak
		b.WriteRune(sparks[min(i, len(sparks)-1)])
	}
	return b.String()
}

func joinOrNone(emails []string) string {
	if len(emails) == 0 {
		return "none"
	}
	return strings.Join(emails, ", ")
}
