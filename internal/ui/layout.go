package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/listadmin/internal/theme"
)

// Layout manages the multi-panel terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	FlashHeight     int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions. The
// header, flash line and status bar are one line each.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		FlashHeight:     1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left for the main content area.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.FlashHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the top header bar with a title and sync status.
func (l Layout) RenderHeader(title string, syncStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := max(0, l.Width-lipgloss.Width(titleRendered)-lipgloss.Width(statusRendered))

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, titleRendered, filler, statusRendered)
}

// RenderFlash renders the result line of the last operation. Errors take
// precedence over informational messages.
func (l Layout) RenderFlash(info string, err error) string {
	line := lipgloss.NewStyle().Width(l.Width).MaxHeight(1)
	switch {
	case err != nil:
		return line.Render(theme.ErrorStyle.Render(err.Error()))
	case info != "":
		return line.Render(theme.FlashStyle.Render(info))
	default:
		return line.Render("")
	}
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := max(0, l.Width-lipgloss.Width(rendered))

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, flash line and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	flash string,
	statusBar string,
) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		flash,
		statusBar,
	)
}
